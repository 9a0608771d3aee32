package mcu

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/msgproto"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/pins"
)

// MaxOIDs is the size of the firmware object id space (oids travel as %c).
const MaxOIDs = 256

// DefaultClockFreq is used when Config.ClockFreq is zero.
const DefaultClockFreq = 16000000

var (
	// ErrOIDExhausted is returned when every object id has been handed out.
	ErrOIDExhausted = errors.New("mcu: object ids exhausted")

	// ErrFinalized is returned for configuration changes after Setup.
	ErrFinalized = errors.New("mcu: configuration already finalized")

	// ErrNotReady is returned for runtime commands sent before Setup.
	ErrNotReady = errors.New("mcu: configuration not finalized")

	// ErrInvalidTime is returned for print times that map to no clock.
	ErrInvalidTime = errors.New("mcu: invalid print time")

	// ErrUnknownPin is returned for pin names the controller does not have.
	ErrUnknownPin = errors.New("mcu: unknown pin")
)

// Config describes a controller.
type Config struct {
	Name      string
	ClockFreq float64
	// Pins lists the physical pin names in enumeration order.
	Pins []string
}

// MCU is the host-side handle of one controller. It allocates object ids,
// converts print time to controller clock, collects configuration commands
// and forwards encoded commands to a Sender.
type MCU struct {
	name   string
	freq   float64
	sender Sender
	logger *slog.Logger

	dict     *msgproto.Dictionary
	pinNames map[string]bool

	nextOID    int
	configCmds []string
	queues     int

	components []*component
	finalized  bool
	crc        uint32
}

// New creates a controller handle. A nil sender discards every message; a
// nil logger uses slog.Default().
func New(cfg Config, sender Sender, logger *slog.Logger) (*MCU, error) {
	if cfg.Name == "" {
		cfg.Name = pins.DefaultChip
	}
	if cfg.ClockFreq == 0 {
		cfg.ClockFreq = DefaultClockFreq
	}
	if cfg.ClockFreq < 0 || math.IsNaN(cfg.ClockFreq) || math.IsInf(cfg.ClockFreq, 0) {
		return nil, fmt.Errorf("mcu %s: invalid clock frequency %v", cfg.Name, cfg.ClockFreq)
	}
	if sender == nil {
		sender = Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &MCU{
		name:     cfg.Name,
		freq:     cfg.ClockFreq,
		sender:   sender,
		logger:   logger.With("mcu", cfg.Name),
		dict:     msgproto.NewDictionary(),
		pinNames: make(map[string]bool, len(cfg.Pins)),
	}

	enum := make(map[string]int, len(cfg.Pins))
	for i, p := range cfg.Pins {
		if m.pinNames[p] {
			return nil, fmt.Errorf("mcu %s: pin %q listed twice", cfg.Name, p)
		}
		m.pinNames[p] = true
		enum[p] = i
	}
	if err := m.dict.AddEnumerations("pin", enum); err != nil {
		return nil, fmt.Errorf("mcu %s: %w", cfg.Name, err)
	}
	return m, nil
}

// Name returns the controller name.
func (m *MCU) Name() string {
	return m.name
}

// ClockFreq returns the controller clock frequency in Hz.
func (m *MCU) ClockFreq() float64 {
	return m.freq
}

// CreateOID allocates the next object id.
func (m *MCU) CreateOID() (int, error) {
	if m.finalized {
		return 0, ErrFinalized
	}
	if m.nextOID >= MaxOIDs {
		return 0, fmt.Errorf("%w on %s (%d allocated)", ErrOIDExhausted, m.name, m.nextOID)
	}
	oid := m.nextOID
	m.nextOID++
	return oid, nil
}

// PrintTimeToClock converts a print time in seconds to a controller clock.
func (m *MCU) PrintTimeToClock(printTime float64) (int64, error) {
	if printTime < 0 || math.IsNaN(printTime) || math.IsInf(printTime, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTime, printTime)
	}
	clock := printTime * m.freq
	if clock >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTime, printTime)
	}
	return int64(clock), nil
}

// ClockToPrintTime converts a controller clock back to print time.
func (m *MCU) ClockToPrintTime(clock int64) float64 {
	return float64(clock) / m.freq
}

// SecondsToClock converts a duration in seconds to clock ticks.
func (m *MCU) SecondsToClock(seconds float64) int64 {
	return int64(seconds * m.freq)
}

// AddConfigCmd appends a configuration command. Commands reach the firmware
// in the order they were added.
func (m *MCU) AddConfigCmd(cmd string) error {
	if m.finalized {
		return fmt.Errorf("%w: %q", ErrFinalized, cmd)
	}
	if _, err := msgproto.ParseLine(cmd); err != nil {
		return err
	}
	m.configCmds = append(m.configCmds, cmd)
	return nil
}

// ConfigCmds returns the configuration commands added so far, unresolved.
func (m *MCU) ConfigCmds() []string {
	return append([]string(nil), m.configCmds...)
}

// AddEnumerations declares symbolic names usable in configuration commands.
func (m *MCU) AddEnumerations(enum string, values map[string]int) error {
	if m.finalized {
		return ErrFinalized
	}
	if err := m.dict.AddEnumerations(enum, values); err != nil {
		return fmt.Errorf("mcu %s: %w", m.name, err)
	}
	return nil
}

// Dictionary returns the controller's enumeration dictionary.
func (m *MCU) Dictionary() *msgproto.Dictionary {
	return m.dict
}

// IsFinalized reports whether Setup completed.
func (m *MCU) IsFinalized() bool {
	return m.finalized
}

// ConfigCRC returns the CRC sent with finalize_config.
func (m *MCU) ConfigCRC() uint32 {
	return m.crc
}

// SetupPin makes the controller a pin chip for its own GPIOs. Only digital
// outputs are provided.
func (m *MCU) SetupPin(pinType string, params pins.PinParams) (any, error) {
	if pinType != pins.PinTypeDigitalOut {
		return nil, fmt.Errorf("%w: %s on %s", pins.ErrUnsupportedPinType, pinType, m.name)
	}
	if len(m.pinNames) > 0 && !m.pinNames[params.Pin] {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownPin, params.Pin, m.name)
	}
	out := newDigitalOut(m, params.Pin, params.Invert)
	if err := m.Register(out); err != nil {
		return nil, err
	}
	return out, nil
}
