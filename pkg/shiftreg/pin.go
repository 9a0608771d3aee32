package shiftreg

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/pins"
)

// State is the lifecycle stage of a Pin.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateActive:
		return "active"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Pin is one bit of a shift register presented as a digital output.
type Pin struct {
	mcu     *mcu.MCU
	chipOID int
	chip    string
	bit     int
	invert  bool

	// start and shutdown already have invert applied.
	start    bool
	shutdown bool

	oid       int
	state     State
	lastClock int64
	setCmd    *mcu.Command
	updateCmd *mcu.Command
}

var _ pins.DigitalOut = (*Pin)(nil)

func newPin(c *Chip, bit int, invert bool) *Pin {
	return &Pin{
		mcu:     c.mcu,
		chipOID: c.oid,
		chip:    c.name,
		bit:     bit,
		invert:  invert,
		oid:     -1,
	}
}

// Bit returns the pin's position in the chip's address space.
func (p *Pin) Bit() int {
	return p.bit
}

// Inverted reports whether values are inverted before transmission.
func (p *Pin) Inverted() bool {
	return p.invert
}

// OID returns the pin's object id, or -1 before BuildConfig.
func (p *Pin) OID() int {
	return p.oid
}

// ChipOID returns the object id of the shift register the pin rides on.
func (p *Pin) ChipOID() int {
	return p.chipOID
}

// State returns the pin's lifecycle stage.
func (p *Pin) State() State {
	return p.state
}

// LastClock returns the clock of the most recent queued command.
func (p *Pin) LastClock() int64 {
	return p.lastClock
}

// MCU returns the controller the pin's commands travel through.
func (p *Pin) MCU() pins.Controller {
	return p.mcu
}

// SetMaxDuration is accepted for compatibility with GPIO outputs. Shift
// register bits have no firmware watchdog, so the duration is ignored.
func (p *Pin) SetMaxDuration(float64) {}

// SetDefaultValues sets the power-on and shutdown levels.
func (p *Pin) SetDefaultValues(start, shutdown bool) error {
	if p.state != StateUninitialized {
		return fmt.Errorf("%w: %s:%d default values", ErrAlreadyConfigured, p.chip, p.bit)
	}
	p.start = start != p.invert
	p.shutdown = shutdown != p.invert
	return nil
}

// BuildConfig allocates the pin's object id, emits config_digital_out bound
// to the shift register and looks up the runtime command templates.
func (p *Pin) BuildConfig() error {
	if p.state != StateUninitialized {
		return fmt.Errorf("%w: %s:%d", ErrAlreadyConfigured, p.chip, p.bit)
	}
	oid, err := p.mcu.CreateOID()
	if err != nil {
		return fmt.Errorf("shiftreg %s:%d: %w", p.chip, p.bit, err)
	}

	err = p.mcu.AddConfigCmd(fmt.Sprintf(
		"config_digital_out oid=%d pin=%d value=%d default_value=%d max_duration=%d shift_register_oid=%d",
		oid, p.bit, btoi(p.start), btoi(p.shutdown), 0, p.chipOID))
	if err != nil {
		return err
	}

	cq := p.mcu.AllocCommandQueue()
	setCmd, err := p.mcu.LookupCommand("queue_digital_out oid=%c clock=%u on_ticks=%u", cq)
	if err != nil {
		return err
	}
	updateCmd, err := p.mcu.LookupCommand("update_digital_out oid=%c value=%c", cq)
	if err != nil {
		return err
	}

	p.oid = oid
	p.setCmd = setCmd
	p.updateCmd = updateCmd
	p.state = StateConfigured
	return nil
}

// SetValue queues a command making the pin take value at printTime. The
// command may not be transmitted before the previous command's clock, and
// printTime must not map to a clock before it.
//
// Calls for one pin must be serialized by the caller.
func (p *Pin) SetValue(printTime float64, value bool) error {
	if p.state == StateUninitialized {
		return fmt.Errorf("%w: %s:%d", ErrUninitialized, p.chip, p.bit)
	}
	clock, err := p.mcu.PrintTimeToClock(printTime)
	if err != nil {
		return err
	}
	if clock < p.lastClock {
		return &OrderingError{OID: p.oid, Clock: clock, LastClock: p.lastClock}
	}

	// The wire clock is the low 32 bits; the firmware extends it.
	args := []int64{int64(p.oid), clock & 0xffffffff, btoi(value != p.invert)}
	if err := p.setCmd.Send(args, p.lastClock, clock); err != nil {
		return err
	}
	p.lastClock = clock
	p.state = StateActive
	return nil
}

// Update sets the pin immediately, outside the clock-ordered queue.
func (p *Pin) Update(value bool) error {
	if p.state == StateUninitialized {
		return fmt.Errorf("%w: %s:%d", ErrUninitialized, p.chip, p.bit)
	}
	if err := p.updateCmd.Send([]int64{int64(p.oid), btoi(value != p.invert)}, 0, 0); err != nil {
		return err
	}
	p.state = StateActive
	return nil
}

func btoi(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
