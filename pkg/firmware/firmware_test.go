package firmware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
)

func send(t *testing.T, f *Firmware, lines ...string) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, f.Send(mcu.Message{Line: l}), l)
	}
}

func configured(t *testing.T) *Firmware {
	t.Helper()
	f := New(nil)
	send(t, f,
		"config_shift_register oid=1 data_pin=0 clock_pin=1 latch_pin=2 num_registers=2",
		"config_digital_out oid=2 pin=5 value=1 default_value=0 max_duration=0 shift_register_oid=1",
		"config_digital_out oid=3 pin=9 value=0 default_value=1 max_duration=0 shift_register_oid=1",
		"config_digital_out oid=0 pin=7 value=1 default_value=0 max_duration=0 shift_register_oid=0",
		"finalize_config crc=1234",
	)
	return f
}

func TestConfig(t *testing.T) {
	f := configured(t)

	assert.True(t, f.IsFinalized())
	assert.Equal(t, uint32(1234), f.CRC())

	sr, ok := f.Register(1)
	require.True(t, ok)
	assert.Equal(t, 2, sr.NumRegisters)
	assert.Equal(t, []byte{0x20, 0x00}, sr.Latched)
	assert.True(t, sr.Bit(5))
	assert.False(t, sr.Bit(9))

	// The plain GPIO output drives pin 7 directly.
	assert.True(t, f.GPIO(7))
	out, ok := f.Output(0)
	require.True(t, ok)
	assert.Equal(t, 0, out.ShiftRegister)
}

func TestShiftOutOrder(t *testing.T) {
	f := New(nil)
	send(t, f,
		"config_shift_register oid=1 data_pin=0 clock_pin=1 latch_pin=2 num_registers=2",
		"shift_register_set_pin oid=1 pin=0 value=1",
		"shift_register_set_pin oid=1 pin=15 value=1",
	)

	sr, ok := f.Register(1)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x80}, sr.Latched)
	assert.Equal(t, 3, sr.Updates)

	edges := sr.LastShift
	require.Len(t, edges, 2+16*3)
	assert.Equal(t, Edge{SignalLatch, false}, edges[0])
	assert.Equal(t, Edge{SignalLatch, true}, edges[len(edges)-1])

	var data []bool
	for i, e := range edges[1 : len(edges)-1] {
		switch i % 3 {
		case 0:
			require.Equal(t, SignalData, e.Signal)
			data = append(data, e.Level)
		case 1:
			require.Equal(t, Edge{SignalClock, true}, e)
		case 2:
			require.Equal(t, Edge{SignalClock, false}, e)
		}
	}
	// Bit 15 leaves first, bit 0 last.
	assert.True(t, data[0])
	assert.True(t, data[15])
	for _, d := range data[1:15] {
		assert.False(t, d)
	}
}

func TestQueuedEvents(t *testing.T) {
	f := configured(t)

	send(t, f,
		"queue_digital_out oid=2 clock=100 on_ticks=0",
		"queue_digital_out oid=3 clock=150 on_ticks=1",
		"queue_digital_out oid=2 clock=200 on_ticks=1",
	)
	assert.Equal(t, 3, f.Pending())

	f.AdvanceTo(160)
	sr, _ := f.Register(1)
	assert.False(t, sr.Bit(5))
	assert.True(t, sr.Bit(9))
	assert.Equal(t, 1, f.Pending())
	assert.Equal(t, int64(160), f.Clock())

	f.AdvanceTo(200)
	sr, _ = f.Register(1)
	assert.True(t, sr.Bit(5))
	assert.Zero(t, f.Pending())
}

func TestUpdateDigitalOut(t *testing.T) {
	f := configured(t)
	send(t, f, "update_digital_out oid=3 value=1")

	sr, _ := f.Register(1)
	assert.True(t, sr.Bit(9))
	out, _ := f.Output(3)
	assert.True(t, out.Value)
}

func TestOutOfOrderShutsDown(t *testing.T) {
	f := configured(t)
	send(t, f, "queue_digital_out oid=2 clock=500 on_ticks=0")

	err := f.Send(mcu.Message{Line: "queue_digital_out oid=2 clock=400 on_ticks=1"})
	require.Error(t, err)

	down, reason := f.IsShutdown()
	assert.True(t, down)
	assert.Contains(t, reason, "scheduled before")
	assert.Zero(t, f.Pending())

	// Outputs revert to their defaults; unconfigured bits clear.
	sr, _ := f.Register(1)
	assert.Equal(t, []byte{0x00, 0x02}, sr.Latched)
	assert.False(t, f.GPIO(7))

	err = f.Send(mcu.Message{Line: "update_digital_out oid=2 value=1"})
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"reserved oid", []string{"config_shift_register oid=0 data_pin=0 clock_pin=1 latch_pin=2 num_registers=1"}},
		{"no registers", []string{"config_shift_register oid=1 data_pin=0 clock_pin=1 latch_pin=2 num_registers=0"}},
		{"unknown register", []string{"config_digital_out oid=2 pin=1 value=0 default_value=0 max_duration=0 shift_register_oid=4"}},
		{"pin beyond chain", []string{
			"config_shift_register oid=1 data_pin=0 clock_pin=1 latch_pin=2 num_registers=1",
			"config_digital_out oid=2 pin=8 value=0 default_value=0 max_duration=0 shift_register_oid=1",
		}},
		{"duplicate oid", []string{
			"config_shift_register oid=1 data_pin=0 clock_pin=1 latch_pin=2 num_registers=1",
			"config_digital_out oid=1 pin=3 value=0 default_value=0 max_duration=0 shift_register_oid=1",
		}},
		{"command before finalize", []string{
			"config_digital_out oid=0 pin=3 value=0 default_value=0 max_duration=0 shift_register_oid=0",
			"queue_digital_out oid=0 clock=10 on_ticks=1",
		}},
		{"unknown command", []string{"reset"}},
		{"bad arity", []string{"update_digital_out oid=1"}},
		{"out of range", []string{"update_digital_out oid=300 value=1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(nil)
			var err error
			for _, l := range tt.lines {
				if err = f.Send(mcu.Message{Line: l}); err != nil {
					break
				}
			}
			assert.Error(t, err)
			down, _ := f.IsShutdown()
			assert.True(t, down)
		})
	}
}

func TestExtendClock(t *testing.T) {
	f := New(nil)
	f.clock = 0x1_0000_0010
	assert.Equal(t, int64(0x1_0000_0020), f.extendClock(0x20))
	// A wire clock just below the current position belongs to this epoch.
	assert.Equal(t, int64(0x1_0000_0005), f.extendClock(0x5))
	// A small wire clock after a large position has wrapped.
	f.clock = 0x1_ffff_fff0
	assert.Equal(t, int64(0x2_0000_0004), f.extendClock(0x4))
}
