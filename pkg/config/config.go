// Package config loads the host description: the controller, its shift
// registers and the digital outputs riding on them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultMCUName      = "mcu"
	DefaultClockFreq    = 16000000
	DefaultNumRegisters = 1
)

// Config is the top-level host description.
type Config struct {
	MCU            MCU             `yaml:"mcu"`
	ShiftRegisters []ShiftRegister `yaml:"shift_registers"`
	Outputs        []Output        `yaml:"outputs"`
}

// MCU describes the controller.
type MCU struct {
	Name      string   `yaml:"name"`
	ClockFreq float64  `yaml:"clock_freq"`
	Pins      []string `yaml:"pins"`
}

// ShiftRegister describes one shift register chain.
type ShiftRegister struct {
	Name         string `yaml:"name"`
	MCU          string `yaml:"mcu"`
	DataPin      string `yaml:"data_pin"`
	ClockPin     string `yaml:"clock_pin"`
	LatchPin     string `yaml:"latch_pin"`
	NumRegisters int    `yaml:"num_registers"`
}

// Output describes a named digital output.
type Output struct {
	Name string `yaml:"name"`
	// Pin is a pin description such as "!sr0:5" or "PA3".
	Pin           string  `yaml:"pin"`
	Value         int     `yaml:"value"`
	ShutdownValue int     `yaml:"shutdown_value"`
	MaxDuration   float64 `yaml:"max_duration"`
}

// LoadError reports a problem loading a configuration file.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// DefaultConfig returns a Config with only the controller defaults set.
func DefaultConfig() *Config {
	return &Config{
		MCU: MCU{
			Name:      DefaultMCUName,
			ClockFreq: DefaultClockFreq,
		},
	}
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid config", Cause: err}
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MCU.Name == "" {
		c.MCU.Name = DefaultMCUName
	}
	if c.MCU.ClockFreq == 0 {
		c.MCU.ClockFreq = DefaultClockFreq
	}
	for i := range c.ShiftRegisters {
		sr := &c.ShiftRegisters[i]
		if sr.MCU == "" {
			sr.MCU = c.MCU.Name
		}
		if sr.NumRegisters == 0 {
			sr.NumRegisters = DefaultNumRegisters
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MCU.ClockFreq < 0 {
		return fmt.Errorf("mcu %s: clock_freq must be positive", c.MCU.Name)
	}
	if len(c.MCU.Pins) == 0 {
		return fmt.Errorf("mcu %s: pins must list the controller's pin names", c.MCU.Name)
	}

	names := map[string]string{c.MCU.Name: "mcu"}
	for i, sr := range c.ShiftRegisters {
		if sr.Name == "" {
			return fmt.Errorf("shift_registers[%d]: name is required", i)
		}
		if kind, ok := names[sr.Name]; ok {
			return fmt.Errorf("shift register %s: name already used by %s", sr.Name, kind)
		}
		names[sr.Name] = "shift register"
		if sr.MCU != c.MCU.Name {
			return fmt.Errorf("shift register %s: unknown mcu %q", sr.Name, sr.MCU)
		}
		if sr.NumRegisters < 1 {
			return fmt.Errorf("shift register %s: num_registers must be at least 1", sr.Name)
		}
		for param, pin := range map[string]string{"data_pin": sr.DataPin, "clock_pin": sr.ClockPin, "latch_pin": sr.LatchPin} {
			if pin == "" {
				return fmt.Errorf("shift register %s: %s is required", sr.Name, param)
			}
		}
	}

	outputs := make(map[string]bool, len(c.Outputs))
	for i, out := range c.Outputs {
		if out.Name == "" {
			return fmt.Errorf("outputs[%d]: name is required", i)
		}
		if outputs[out.Name] {
			return fmt.Errorf("output %s: duplicate name", out.Name)
		}
		outputs[out.Name] = true
		if out.Pin == "" {
			return fmt.Errorf("output %s: pin is required", out.Name)
		}
		if out.Value != 0 && out.Value != 1 {
			return fmt.Errorf("output %s: value must be 0 or 1", out.Name)
		}
		if out.ShutdownValue != 0 && out.ShutdownValue != 1 {
			return fmt.Errorf("output %s: shutdown_value must be 0 or 1", out.Name)
		}
		if out.MaxDuration < 0 {
			return fmt.Errorf("output %s: max_duration must not be negative", out.Name)
		}
	}
	return nil
}
