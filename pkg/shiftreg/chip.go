package shiftreg

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/pins"
)

// BitsPerRegister is the width of one register stage.
const BitsPerRegister = 8

// ChipConfig describes one shift register chain.
type ChipConfig struct {
	// Name is the pin chip name; pins are addressed as "<Name>:<bit>".
	Name string
	// DataPin, ClockPin and LatchPin are pin descriptions on the MCU.
	DataPin  string
	ClockPin string
	LatchPin string
	// NumRegisters is the number of chained 8-bit stages.
	NumRegisters int
}

// Chip drives a chain of 74HC595-style shift registers attached to an MCU
// and hands out its bits as digital output pins.
type Chip struct {
	name         string
	mcu          *mcu.MCU
	oid          int
	numRegisters int

	dataPin  pins.PinParams
	clockPin pins.PinParams
	latchPin pins.PinParams

	logger *slog.Logger
}

// NewChip reserves the control pins, allocates the chip's object id,
// registers the chip as a pin provider under cfg.Name and schedules its
// configuration with m.
func NewChip(cfg ChipConfig, m *mcu.MCU, registry *pins.Registry, logger *slog.Logger) (*Chip, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if cfg.NumRegisters < 1 {
		return nil, fmt.Errorf("%w: %s: num_registers must be at least 1, got %d", ErrInvalidConfig, cfg.Name, cfg.NumRegisters)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Chip{
		name:         cfg.Name,
		mcu:          m,
		numRegisters: cfg.NumRegisters,
		logger:       logger.With("chip", cfg.Name),
	}
	c.logger.Info("generic shift register setup", "mcu", m.Name(), "num_registers", cfg.NumRegisters)

	var err error
	if c.dataPin, err = c.lookupControlPin(registry, "data_pin", cfg.DataPin); err != nil {
		return nil, err
	}
	if c.clockPin, err = c.lookupControlPin(registry, "clock_pin", cfg.ClockPin); err != nil {
		return nil, err
	}
	if c.latchPin, err = c.lookupControlPin(registry, "latch_pin", cfg.LatchPin); err != nil {
		return nil, err
	}

	// oid 0 tells the firmware a digital out is a plain GPIO.
	if c.oid, err = m.CreateOID(); err != nil {
		return nil, fmt.Errorf("shiftreg %s: %w", c.name, err)
	}
	if c.oid == 0 {
		if c.oid, err = m.CreateOID(); err != nil {
			return nil, fmt.Errorf("shiftreg %s: %w", c.name, err)
		}
	}

	if err := registry.RegisterChip(c.name, c); err != nil {
		return nil, err
	}
	if err := m.Register(c); err != nil {
		return nil, err
	}
	c.logger.Debug("allocated", "oid", c.oid)
	return c, nil
}

func (c *Chip) lookupControlPin(registry *pins.Registry, param, desc string) (pins.PinParams, error) {
	if desc == "" {
		return pins.PinParams{}, fmt.Errorf("%w: %s: missing %s", ErrInvalidConfig, c.name, param)
	}
	p, err := registry.LookupPin(desc, false, false)
	if err != nil {
		return pins.PinParams{}, fmt.Errorf("shiftreg %s: %s: %w", c.name, param, err)
	}
	if p.ChipName != c.mcu.Name() {
		return pins.PinParams{}, fmt.Errorf("%w: %s: %s %q must be on mcu %s", ErrInvalidConfig, c.name, param, desc, c.mcu.Name())
	}
	return p, nil
}

// Name returns the pin chip name.
func (c *Chip) Name() string {
	return c.name
}

// OID returns the chip's object id. It is never 0.
func (c *Chip) OID() int {
	return c.oid
}

// MCU returns the controller the chip is attached to.
func (c *Chip) MCU() *mcu.MCU {
	return c.mcu
}

// NumRegisters returns the number of chained stages.
func (c *Chip) NumRegisters() int {
	return c.numRegisters
}

// NumPins returns the size of the bit address space.
func (c *Chip) NumPins() int {
	return c.numRegisters * BitsPerRegister
}

// Enumeration returns the symbolic pin names the chip declares: "0" through
// "8*num_registers-1", each mapping to its bit index.
func (c *Chip) Enumeration() map[string]int {
	enum := make(map[string]int, c.NumPins())
	for i := 0; i < c.NumPins(); i++ {
		enum[strconv.Itoa(i)] = i
	}
	return enum
}

// ResolveBit maps a pin name to its bit index.
func (c *Chip) ResolveBit(name string) (int, error) {
	bit, ok := c.Enumeration()[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s:%s (chip has %d pins)", ErrBitOutOfRange, c.name, name, c.NumPins())
	}
	return bit, nil
}

// BuildConfig emits config_shift_register and declares the chip's bit
// names. It runs before the configuration of any pin on the chip.
func (c *Chip) BuildConfig() error {
	err := c.mcu.AddConfigCmd(fmt.Sprintf(
		"config_shift_register oid=%d data_pin=%s clock_pin=%s latch_pin=%s num_registers=%d",
		c.oid, c.dataPin.Pin, c.clockPin.Pin, c.latchPin.Pin, c.numRegisters))
	if err != nil {
		return err
	}
	c.logger.Debug("adding shift register pin enums", "pins", c.NumPins())
	return c.mcu.AddEnumerations("pin", c.Enumeration())
}

// SetupPin creates the driver for one bit of the chip. Only digital outputs
// are supported.
func (c *Chip) SetupPin(pinType string, params pins.PinParams) (any, error) {
	if pinType != pins.PinTypeDigitalOut {
		return nil, fmt.Errorf("%w: %s on shift register %s", pins.ErrUnsupportedPinType, pinType, c.name)
	}
	if params.Pullup != 0 {
		return nil, fmt.Errorf("%w: %s", pins.ErrPullupNotAllowed, params)
	}
	bit, err := c.ResolveBit(params.Pin)
	if err != nil {
		return nil, err
	}

	p := newPin(c, bit, params.Invert)
	if err := c.mcu.Register(p, c); err != nil {
		return nil, err
	}
	return p, nil
}
