package pins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOut struct {
	params PinParams
}

func (f *fakeOut) SetMaxDuration(float64) {}
func (f *fakeOut) SetDefaultValues(bool, bool) error { return nil }
func (f *fakeOut) SetValue(float64, bool) error { return nil }
func (f *fakeOut) MCU() Controller { return nil }

type fakeChip struct {
	setups []string
}

func (c *fakeChip) SetupPin(pinType string, params PinParams) (any, error) {
	c.setups = append(c.setups, pinType+" "+params.String())
	if pinType != PinTypeDigitalOut {
		return struct{}{}, nil
	}
	return &fakeOut{params: params}, nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeChip, *fakeChip) {
	t.Helper()
	r := NewRegistry()
	mcu, sr := &fakeChip{}, &fakeChip{}
	require.NoError(t, r.RegisterChip("mcu", mcu))
	require.NoError(t, r.RegisterChip("sr0", sr))
	return r, mcu, sr
}

func TestParsePin(t *testing.T) {
	r, mcu, sr := newTestRegistry(t)

	tests := []struct {
		desc      string
		canInvert bool
		canPullup bool
		chip      Chip
		chipName  string
		pin       string
		invert    bool
		pullup    int
	}{
		{"PA0", false, false, mcu, "mcu", "PA0", false, 0},
		{"sr0:5", false, false, sr, "sr0", "5", false, 0},
		{"!sr0:5", true, false, sr, "sr0", "5", true, 0},
		{" ! sr0 : 7 ", true, false, sr, "sr0", "7", true, 0},
		{"^!PB1", true, true, mcu, "mcu", "PB1", true, 1},
		{"~PB2", false, true, mcu, "mcu", "PB2", false, -1},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			p, err := r.ParsePin(tt.desc, tt.canInvert, tt.canPullup)
			require.NoError(t, err)
			assert.Same(t, tt.chip, p.Chip)
			assert.Equal(t, tt.chipName, p.ChipName)
			assert.Equal(t, tt.pin, p.Pin)
			assert.Equal(t, tt.invert, p.Invert)
			assert.Equal(t, tt.pullup, p.Pullup)
		})
	}
}

func TestParsePinErrors(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	tests := []struct {
		desc      string
		canInvert bool
		canPullup bool
		err       error
	}{
		{"", true, true, ErrInvalidPin},
		{"sr0:", true, true, ErrInvalidPin},
		{":5", true, true, ErrInvalidPin},
		{"sr0:1:2", true, true, ErrInvalidPin},
		{"!PA0", false, false, ErrInvertNotAllowed},
		{"^PA0", true, false, ErrPullupNotAllowed},
		{"sr9:1", true, false, ErrUnknownChip},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := r.ParsePin(tt.desc, tt.canInvert, tt.canPullup)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRegisterChip(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	assert.ErrorIs(t, r.RegisterChip("sr0", &fakeChip{}), ErrDuplicateChip)
	assert.ErrorIs(t, r.RegisterChip("bad:name", &fakeChip{}), ErrInvalidPin)
	assert.ErrorIs(t, r.RegisterChip(" ", &fakeChip{}), ErrInvalidPin)

	_, ok := r.Chip("sr0")
	assert.True(t, ok)
	_, ok = r.Chip("sr1")
	assert.False(t, ok)
}

func TestLookupPinReservesPin(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, err := r.LookupPin("sr0:3", true, false)
	require.NoError(t, err)
	assert.True(t, r.InUse("sr0", "3"))

	// Modifiers do not make a different pin.
	_, err = r.LookupPin("!sr0:3", true, false)
	assert.ErrorIs(t, err, ErrPinInUse)

	_, err = r.LookupPin("sr0:4", true, false)
	assert.NoError(t, err)
}

func TestSetupDigitalOut(t *testing.T) {
	r, mcu, sr := newTestRegistry(t)

	out, err := r.SetupDigitalOut("!sr0:5")
	require.NoError(t, err)
	fo, ok := out.(*fakeOut)
	require.True(t, ok)
	assert.True(t, fo.params.Invert)
	assert.Equal(t, []string{"digital_out !sr0:5"}, sr.setups)
	assert.Empty(t, mcu.setups)

	_, err = r.SetupDigitalOut("^PA0")
	assert.ErrorIs(t, err, ErrPullupNotAllowed)

	_, err = r.SetupPin(PinTypeEndstop, "^!PA1")
	require.NoError(t, err)
	assert.Equal(t, []string{"endstop ^!mcu:PA1"}, mcu.setups)
}

func TestSetupDigitalOutRejectsOtherDrivers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterChip("mcu", chipFunc(func(string, PinParams) (any, error) {
		return "not a pin", nil
	})))

	_, err := r.SetupDigitalOut("PA0")
	assert.ErrorIs(t, err, ErrUnsupportedPinType)
}

type chipFunc func(string, PinParams) (any, error)

func (f chipFunc) SetupPin(pinType string, params PinParams) (any, error) {
	return f(pinType, params)
}
