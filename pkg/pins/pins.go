package pins

import (
	"errors"
	"fmt"
	"strings"
)

// Pin types understood by Registry.SetupPin.
const (
	PinTypeDigitalOut = "digital_out"
	PinTypePWM        = "pwm"
	PinTypeEndstop    = "endstop"
	PinTypeADC        = "adc"
)

// DefaultChip is the chip name assumed for pin descriptions without a
// "chip:" prefix.
const DefaultChip = "mcu"

var (
	ErrInvalidPin         = errors.New("pins: invalid pin description")
	ErrUnknownChip        = errors.New("pins: unknown pin chip")
	ErrDuplicateChip      = errors.New("pins: duplicate chip name")
	ErrPinInUse           = errors.New("pins: pin used multiple times")
	ErrInvertNotAllowed   = errors.New("pins: pin type may not be inverted")
	ErrPullupNotAllowed   = errors.New("pins: pin type may not use a pullup")
	ErrUnsupportedPinType = errors.New("pins: unsupported pin type")
)

// Controller is the transport a pin driver sends its commands through.
type Controller interface {
	Name() string
	PrintTimeToClock(printTime float64) (int64, error)
}

// DigitalOut is the capability every digital output driver provides,
// whether it drives a controller GPIO directly or a bit of a shift register.
type DigitalOut interface {
	// SetMaxDuration sets the hardware watchdog duration in seconds.
	// Drivers without a watchdog accept and ignore it.
	SetMaxDuration(seconds float64)
	// SetDefaultValues sets the power-on and shutdown levels. It must be
	// called before the driver's configuration is built.
	SetDefaultValues(start, shutdown bool) error
	// SetValue schedules the output to take value at printTime.
	SetValue(printTime float64, value bool) error
	// MCU returns the controller the driver's commands travel through.
	MCU() Controller
}

// Chip creates pin drivers for the pins it owns.
type Chip interface {
	SetupPin(pinType string, params PinParams) (any, error)
}

// PinParams is a parsed pin description.
type PinParams struct {
	Chip     Chip
	ChipName string
	Pin      string
	Invert   bool
	// Pullup is 1 for "^", -1 for "~" and 0 otherwise.
	Pullup int
}

// Key identifies the physical pin independent of modifiers.
func (p PinParams) Key() string {
	return p.ChipName + ":" + p.Pin
}

func (p PinParams) String() string {
	var b strings.Builder
	switch p.Pullup {
	case 1:
		b.WriteByte('^')
	case -1:
		b.WriteByte('~')
	}
	if p.Invert {
		b.WriteByte('!')
	}
	b.WriteString(p.Key())
	return b.String()
}

// Registry maps chip names to pin providers and tracks which pins are in use.
type Registry struct {
	chips  map[string]Chip
	active map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chips:  make(map[string]Chip),
		active: make(map[string]string),
	}
}

// RegisterChip makes chip the provider for descriptions of the form
// "name:pin".
func (r *Registry) RegisterChip(name string, chip Chip) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, ":!^~ \t") {
		return fmt.Errorf("%w: chip name %q", ErrInvalidPin, name)
	}
	if _, ok := r.chips[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateChip, name)
	}
	r.chips[name] = chip
	return nil
}

// Chip returns the provider registered under name.
func (r *Registry) Chip(name string) (Chip, bool) {
	chip, ok := r.chips[name]
	return chip, ok
}

// ParsePin parses a description of the form "[^|~][!][chip:]pin" without
// reserving the pin.
func (r *Registry) ParsePin(desc string, canInvert, canPullup bool) (PinParams, error) {
	s := strings.TrimSpace(desc)
	var params PinParams

	if canPullup && len(s) > 0 && (s[0] == '^' || s[0] == '~') {
		params.Pullup = 1
		if s[0] == '~' {
			params.Pullup = -1
		}
		s = strings.TrimSpace(s[1:])
	}
	if canInvert && strings.HasPrefix(s, "!") {
		params.Invert = true
		s = strings.TrimSpace(s[1:])
	}
	if len(s) > 0 && strings.ContainsRune("^~", rune(s[0])) {
		return PinParams{}, fmt.Errorf("%w: %q", ErrPullupNotAllowed, desc)
	}
	if strings.HasPrefix(s, "!") {
		return PinParams{}, fmt.Errorf("%w: %q", ErrInvertNotAllowed, desc)
	}

	chipName, pin := DefaultChip, s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		chipName, pin = strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	if chipName == "" || pin == "" || strings.ContainsAny(pin, ": \t!^~") {
		return PinParams{}, fmt.Errorf("%w: %q", ErrInvalidPin, desc)
	}

	chip, ok := r.chips[chipName]
	if !ok {
		return PinParams{}, fmt.Errorf("%w: %q in %q", ErrUnknownChip, chipName, desc)
	}
	params.Chip = chip
	params.ChipName = chipName
	params.Pin = pin
	return params, nil
}

// LookupPin parses desc and reserves the pin so no other description can
// claim it.
func (r *Registry) LookupPin(desc string, canInvert, canPullup bool) (PinParams, error) {
	params, err := r.ParsePin(desc, canInvert, canPullup)
	if err != nil {
		return PinParams{}, err
	}
	if owner, ok := r.active[params.Key()]; ok {
		return PinParams{}, fmt.Errorf("%w: %s (already claimed by %q)", ErrPinInUse, params.Key(), owner)
	}
	r.active[params.Key()] = desc
	return params, nil
}

// InUse reports whether a pin has been reserved.
func (r *Registry) InUse(chipName, pin string) bool {
	_, ok := r.active[chipName+":"+pin]
	return ok
}

// SetupPin reserves the pin named by desc and asks its chip for a driver of
// the given type.
func (r *Registry) SetupPin(pinType, desc string) (any, error) {
	canInvert := pinType == PinTypeDigitalOut || pinType == PinTypePWM || pinType == PinTypeEndstop
	canPullup := pinType == PinTypeEndstop

	params, err := r.LookupPin(desc, canInvert, canPullup)
	if err != nil {
		return nil, err
	}
	return params.Chip.SetupPin(pinType, params)
}

// SetupDigitalOut is SetupPin for digital outputs.
func (r *Registry) SetupDigitalOut(desc string) (DigitalOut, error) {
	drv, err := r.SetupPin(PinTypeDigitalOut, desc)
	if err != nil {
		return nil, err
	}
	out, ok := drv.(DigitalOut)
	if !ok {
		return nil, fmt.Errorf("%w: %q does not provide a digital output", ErrUnsupportedPinType, desc)
	}
	return out, nil
}
