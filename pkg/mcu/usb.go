package mcu

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// USBInfo describes a USB device that may be a controller running
// compatible firmware.
type USBInfo struct {
	Description string
	VendorID    uint16
	ProductID   uint16
	Bus         int
	Address     int
}

// Label returns a user-friendly description of the device.
func (i USBInfo) Label() string {
	if i.Description != "" {
		return fmt.Sprintf("%s (%04x:%04x bus %d addr %d)", i.Description, i.VendorID, i.ProductID, i.Bus, i.Address)
	}
	return fmt.Sprintf("USB %04x:%04x bus %d addr %d", i.VendorID, i.ProductID, i.Bus, i.Address)
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownControllers = []knownUSBDevice{
	{VendorID: 0x1d50, ProductID: 0x614e, Description: "Klipper native USB"},
	{VendorID: 0x1a86, ProductID: 0x7523, Description: "CH340 serial bridge"},
	{VendorID: 0x0403, ProductID: 0x6001, Description: "FTDI FT232 serial bridge"},
	{VendorID: 0x10c4, ProductID: 0xea60, Description: "CP210x serial bridge"},
	{VendorID: 0x2341, ProductID: 0x0042, Description: "Arduino Mega 2560"},
	{VendorID: 0x2341, ProductID: 0x0043, Description: "Arduino Uno"},
	{VendorID: 0x2e8a, ProductID: 0x0003, Description: "Raspberry Pi RP2040 boot"},
}

// ClassifyUSB reports whether the vendor/product pair belongs to a known
// controller or serial bridge.
func ClassifyUSB(vendor, product uint16) (string, bool) {
	for _, known := range knownControllers {
		if vendor == known.VendorID && product == known.ProductID {
			return known.Description, true
		}
	}
	return "", false
}

// DiscoverUSB enumerates connected USB devices that match known controller
// VID/PID pairs.
func DiscoverUSB(ctx context.Context) ([]USBInfo, error) {
	var results []USBInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if name, ok := ClassifyUSB(uint16(desc.Vendor), uint16(desc.Product)); ok {
			results = append(results, USBInfo{
				Description: name,
				VendorID:    uint16(desc.Vendor),
				ProductID:   uint16(desc.Product),
				Bus:         desc.Bus,
				Address:     desc.Address,
			})
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
