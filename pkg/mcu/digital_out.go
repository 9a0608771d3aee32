package mcu

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/pins"
)

var (
	errOutConfigured   = errors.New("mcu: digital out already configured")
	errOutUnconfigured = errors.New("mcu: digital out not configured")
)

// DigitalOut drives one controller GPIO.
type DigitalOut struct {
	mcu         *MCU
	pin         string
	invert      bool
	start       bool
	shutdown    bool
	maxDuration float64

	oid       int
	lastClock int64
	setCmd    *Command
}

var _ pins.DigitalOut = (*DigitalOut)(nil)

func newDigitalOut(m *MCU, pin string, invert bool) *DigitalOut {
	return &DigitalOut{mcu: m, pin: pin, invert: invert, oid: -1}
}

// MCU returns the controller the pin belongs to.
func (d *DigitalOut) MCU() pins.Controller {
	return d.mcu
}

// OID returns the object id, or -1 before BuildConfig.
func (d *DigitalOut) OID() int {
	return d.oid
}

// SetMaxDuration sets how long the firmware lets the pin stay away from its
// default value without a fresh command.
func (d *DigitalOut) SetMaxDuration(seconds float64) {
	d.maxDuration = seconds
}

// SetDefaultValues sets the power-on and shutdown levels.
func (d *DigitalOut) SetDefaultValues(start, shutdown bool) error {
	if d.setCmd != nil {
		return errOutConfigured
	}
	d.start = start != d.invert
	d.shutdown = shutdown != d.invert
	return nil
}

// BuildConfig emits config_digital_out for the pin.
func (d *DigitalOut) BuildConfig() error {
	if d.setCmd != nil {
		return errOutConfigured
	}
	oid, err := d.mcu.CreateOID()
	if err != nil {
		return err
	}
	d.oid = oid

	err = d.mcu.AddConfigCmd(fmt.Sprintf(
		"config_digital_out oid=%d pin=%s value=%d default_value=%d max_duration=%d shift_register_oid=0",
		d.oid, d.pin, btoi(d.start), btoi(d.shutdown), d.mcu.SecondsToClock(d.maxDuration)))
	if err != nil {
		return err
	}
	d.setCmd, err = d.mcu.LookupCommand("queue_digital_out oid=%c clock=%u on_ticks=%u", d.mcu.AllocCommandQueue())
	return err
}

// SetValue schedules the pin to take value at printTime.
func (d *DigitalOut) SetValue(printTime float64, value bool) error {
	if d.setCmd == nil {
		return errOutUnconfigured
	}
	clock, err := d.mcu.PrintTimeToClock(printTime)
	if err != nil {
		return err
	}
	if clock < d.lastClock {
		return fmt.Errorf("%w: %s clock %d before %d", ErrClockOrder, d.pin, clock, d.lastClock)
	}
	err = d.setCmd.Send([]int64{int64(d.oid), clock & 0xffffffff, btoi(value != d.invert)}, d.lastClock, clock)
	if err != nil {
		return err
	}
	d.lastClock = clock
	return nil
}

func btoi(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
