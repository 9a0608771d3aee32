// Package host assembles the controller, its shift registers and the
// configured outputs from a Config and runs the two-phase setup.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/config"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/pins"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/shiftreg"
)

// ErrUnknownOutput is returned for output names not in the configuration.
var ErrUnknownOutput = errors.New("host: unknown output")

// Host owns every object built from a configuration.
type Host struct {
	MCU      *mcu.MCU
	Registry *pins.Registry

	chips   map[string]*shiftreg.Chip
	outputs map[string]pins.DigitalOut
	logger  *slog.Logger
}

// Build constructs the object graph described by cfg and runs MCU setup,
// sending the configuration through sender.
func Build(cfg *config.Config, sender mcu.Sender, logger *slog.Logger) (*Host, error) {
	h, err := New(cfg, sender, logger)
	if err != nil {
		return nil, err
	}
	if err := h.MCU.Setup(); err != nil {
		return nil, err
	}
	return h, nil
}

// New constructs the object graph described by cfg without running setup.
func New(cfg *config.Config, sender mcu.Sender, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m, err := mcu.New(mcu.Config{
		Name:      cfg.MCU.Name,
		ClockFreq: cfg.MCU.ClockFreq,
		Pins:      cfg.MCU.Pins,
	}, sender, logger)
	if err != nil {
		return nil, err
	}

	registry := pins.NewRegistry()
	if err := registry.RegisterChip(m.Name(), m); err != nil {
		return nil, err
	}

	h := &Host{
		MCU:      m,
		Registry: registry,
		chips:    make(map[string]*shiftreg.Chip, len(cfg.ShiftRegisters)),
		outputs:  make(map[string]pins.DigitalOut, len(cfg.Outputs)),
		logger:   logger,
	}

	for _, sr := range cfg.ShiftRegisters {
		chip, err := shiftreg.NewChip(shiftreg.ChipConfig{
			Name:         sr.Name,
			DataPin:      sr.DataPin,
			ClockPin:     sr.ClockPin,
			LatchPin:     sr.LatchPin,
			NumRegisters: sr.NumRegisters,
		}, m, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("shift register %s: %w", sr.Name, err)
		}
		h.chips[sr.Name] = chip
	}

	for _, o := range cfg.Outputs {
		out, err := registry.SetupDigitalOut(o.Pin)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", o.Name, err)
		}
		out.SetMaxDuration(o.MaxDuration)
		if err := out.SetDefaultValues(o.Value != 0, o.ShutdownValue != 0); err != nil {
			return nil, fmt.Errorf("output %s: %w", o.Name, err)
		}
		h.outputs[o.Name] = out
		logger.Debug("output configured", "output", o.Name, "pin", o.Pin)
	}
	return h, nil
}

// Output returns the named output.
func (h *Host) Output(name string) (pins.DigitalOut, error) {
	out, ok := h.outputs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutput, name)
	}
	return out, nil
}

// OutputNames returns the configured output names, sorted.
func (h *Host) OutputNames() []string {
	names := make([]string, 0, len(h.outputs))
	for name := range h.outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chip returns the named shift register.
func (h *Host) Chip(name string) (*shiftreg.Chip, bool) {
	c, ok := h.chips[name]
	return c, ok
}

// Chips returns every shift register ordered by object id.
func (h *Host) Chips() []*shiftreg.Chip {
	chips := make([]*shiftreg.Chip, 0, len(h.chips))
	for _, c := range h.chips {
		chips = append(chips, c)
	}
	sort.Slice(chips, func(i, j int) bool { return chips[i].OID() < chips[j].OID() })
	return chips
}

// Updater is implemented by outputs that support an immediate,
// unscheduled update.
type Updater interface {
	Update(value bool) error
}

// Update sets the named output immediately.
func (h *Host) Update(name string, value bool) error {
	out, err := h.Output(name)
	if err != nil {
		return err
	}
	u, ok := out.(Updater)
	if !ok {
		return fmt.Errorf("host: output %s does not support immediate updates", name)
	}
	return u.Update(value)
}

// Set schedules the named output to take value at printTime.
func (h *Host) Set(name string, printTime float64, value bool) error {
	out, err := h.Output(name)
	if err != nil {
		return err
	}
	return out.SetValue(printTime, value)
}
