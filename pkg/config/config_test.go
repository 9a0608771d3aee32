package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
mcu:
  pins: [PA0, PA1, PA2, PB0]
shift_registers:
  - name: sr0
    data_pin: PA0
    clock_pin: PA1
    latch_pin: PA2
    num_registers: 2
outputs:
  - name: case_light
    pin: "!sr0:5"
    value: 1
  - name: beeper
    pin: PB0
    shutdown_value: 0
    max_duration: 2.5
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "mcu", cfg.MCU.Name)
	assert.Equal(t, float64(DefaultClockFreq), cfg.MCU.ClockFreq)
	require.Len(t, cfg.ShiftRegisters, 1)
	assert.Equal(t, ShiftRegister{
		Name: "sr0", MCU: "mcu", DataPin: "PA0", ClockPin: "PA1", LatchPin: "PA2", NumRegisters: 2,
	}, cfg.ShiftRegisters[0])
	require.Len(t, cfg.Outputs, 2)
	assert.Equal(t, Output{Name: "case_light", Pin: "!sr0:5", Value: 1}, cfg.Outputs[0])
	assert.Equal(t, 2.5, cfg.Outputs[1].MaxDuration)
}

func TestParseDefaultsNumRegisters(t *testing.T) {
	cfg, err := Parse([]byte(`
mcu: {name: ctl, pins: [PA0, PA1, PA2]}
shift_registers:
  - {name: sr0, data_pin: PA0, clock_pin: PA1, latch_pin: PA2}
`))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.ShiftRegisters[0].NumRegisters)
	assert.Equal(t, "ctl", cfg.ShiftRegisters[0].MCU)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"no pins", `mcu: {name: mcu}`, "pins must list"},
		{"missing sr name", `
mcu: {pins: [PA0]}
shift_registers: [{data_pin: PA0, clock_pin: PA0, latch_pin: PA0}]`, "name is required"},
		{"sr shadows mcu", `
mcu: {pins: [PA0]}
shift_registers: [{name: mcu, data_pin: PA0, clock_pin: PA0, latch_pin: PA0}]`, "already used"},
		{"unknown mcu", `
mcu: {pins: [PA0]}
shift_registers: [{name: sr0, mcu: other, data_pin: PA0, clock_pin: PA0, latch_pin: PA0}]`, "unknown mcu"},
		{"negative registers", `
mcu: {pins: [PA0]}
shift_registers: [{name: sr0, data_pin: PA0, clock_pin: PA0, latch_pin: PA0, num_registers: -1}]`, "num_registers"},
		{"missing latch", `
mcu: {pins: [PA0]}
shift_registers: [{name: sr0, data_pin: PA0, clock_pin: PA0}]`, "latch_pin is required"},
		{"duplicate output", `
mcu: {pins: [PA0]}
outputs: [{name: a, pin: PA0}, {name: a, pin: PA0}]`, "duplicate"},
		{"bad value", `
mcu: {pins: [PA0]}
outputs: [{name: a, pin: PA0, value: 2}]`, "value must be 0 or 1"},
		{"output without pin", `
mcu: {pins: [PA0]}
outputs: [{name: a}]`, "pin is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Outputs, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, filepath.Join(dir, "missing.yaml"), le.File)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mcu: ["), 0644))
	_, err = Load(bad)
	require.True(t, errors.As(err, &le))
	assert.Equal(t, bad, le.File)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}
