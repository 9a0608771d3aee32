package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/config"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/firmware"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/shiftreg"
)

const hostYAML = `
mcu:
  clock_freq: 1000
  pins: [PA0, PA1, PA2, PA3, PB0, PB1, PB2]
shift_registers:
  - {name: sr0, data_pin: PA0, clock_pin: PA1, latch_pin: PA2, num_registers: 2}
  - {name: sr1, data_pin: PB0, clock_pin: PB1, latch_pin: PB2}
outputs:
  - {name: case_light, pin: "!sr0:5", value: 1}
  - {name: fan, pin: "sr1:7", shutdown_value: 1}
  - {name: beeper, pin: PA3, max_duration: 2}
`

func buildHost(t *testing.T, sender mcu.Sender) *Host {
	t.Helper()
	cfg, err := config.Parse([]byte(hostYAML))
	require.NoError(t, err)
	h, err := Build(cfg, sender, nil)
	require.NoError(t, err)
	return h
}

func TestBuildConfigStream(t *testing.T) {
	rec := mcu.NewRecorder()
	h := buildHost(t, rec)

	sr0, ok := h.Chip("sr0")
	require.True(t, ok)
	sr1, ok := h.Chip("sr1")
	require.True(t, ok)
	assert.Equal(t, 1, sr0.OID())
	assert.Equal(t, 2, sr1.OID())
	assert.Equal(t, []*shiftreg.Chip{sr0, sr1}, h.Chips())

	lines := rec.Lines(mcu.KindConfig)
	require.Len(t, lines, 6)
	assert.Equal(t, "config_shift_register oid=1 data_pin=0 clock_pin=1 latch_pin=2 num_registers=2", lines[0])
	assert.Equal(t, "config_shift_register oid=2 data_pin=4 clock_pin=5 latch_pin=6 num_registers=1", lines[1])
	assert.Equal(t, "config_digital_out oid=3 pin=5 value=0 default_value=1 max_duration=0 shift_register_oid=1", lines[2])
	assert.Equal(t, "config_digital_out oid=4 pin=7 value=0 default_value=1 max_duration=0 shift_register_oid=2", lines[3])
	assert.Equal(t, "config_digital_out oid=5 pin=3 value=0 default_value=0 max_duration=2000 shift_register_oid=0", lines[4])

	assert.Equal(t, []string{"beeper", "case_light", "fan"}, h.OutputNames())
}

func TestBuildAgainstFirmware(t *testing.T) {
	fw := firmware.New(nil)
	h := buildHost(t, fw)

	require.NoError(t, h.Set("case_light", 1.0, false))
	require.NoError(t, h.Set("fan", 1.0, true))
	require.NoError(t, h.Set("beeper", 0.5, true))
	require.NoError(t, h.Update("case_light", true))

	sr0, _ := h.Chip("sr0")
	reg, ok := fw.Register(sr0.OID())
	require.True(t, ok)
	assert.False(t, reg.Bit(5), "immediate update of an inverted output drives the bit low")

	fw.AdvanceTo(1000)
	reg, _ = fw.Register(sr0.OID())
	assert.True(t, reg.Bit(5))
	sr1, _ := h.Chip("sr1")
	reg, _ = fw.Register(sr1.OID())
	assert.True(t, reg.Bit(7))
	assert.True(t, fw.GPIO(3))

	assert.ErrorIs(t, h.Set("missing", 1, true), ErrUnknownOutput)
	assert.Error(t, h.Update("beeper", true))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bit out of range", `
mcu: {pins: [PA0, PA1, PA2]}
shift_registers: [{name: sr0, data_pin: PA0, clock_pin: PA1, latch_pin: PA2}]
outputs: [{name: a, pin: "sr0:8"}]`},
		{"shared control pin", `
mcu: {pins: [PA0, PA1, PA2]}
shift_registers:
  - {name: sr0, data_pin: PA0, clock_pin: PA1, latch_pin: PA2}
  - {name: sr1, data_pin: PA0, clock_pin: PA1, latch_pin: PA2}`},
		{"output on control pin", `
mcu: {pins: [PA0, PA1, PA2]}
shift_registers: [{name: sr0, data_pin: PA0, clock_pin: PA1, latch_pin: PA2}]
outputs: [{name: a, pin: PA2}]`},
		{"unknown chip", `
mcu: {pins: [PA0]}
outputs: [{name: a, pin: "sr5:1"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Build(cfg, nil, nil)
			assert.Error(t, err)
		})
	}
}
