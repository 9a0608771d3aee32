package firmware

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/msgproto"
)

var (
	// ErrShutdown is returned for every command after the firmware shut
	// down.
	ErrShutdown = errors.New("firmware: shutdown")

	// ErrUnknownCommand is returned for commands the firmware does not
	// implement. It also shuts the firmware down.
	ErrUnknownCommand = errors.New("firmware: unknown command")
)

// Command formats the firmware implements.
var formats = map[string]*msgproto.Format{}

func init() {
	for _, f := range []string{
		"config_shift_register oid=%c data_pin=%c clock_pin=%c latch_pin=%c num_registers=%c",
		"config_digital_out oid=%c pin=%u value=%c default_value=%c max_duration=%u shift_register_oid=%c",
		"queue_digital_out oid=%c clock=%u on_ticks=%u",
		"update_digital_out oid=%c value=%c",
		"shift_register_set_pin oid=%c pin=%c value=%c",
		"finalize_config crc=%u",
	} {
		parsed, err := msgproto.ParseFormat(f)
		if err != nil {
			panic(fmt.Sprintf("firmware: bad format %q: %v", f, err))
		}
		formats[parsed.Name] = parsed
	}
}

// Signal identifies a shift register control line.
type Signal uint8

const (
	SignalData Signal = iota
	SignalClock
	SignalLatch
)

func (s Signal) String() string {
	switch s {
	case SignalData:
		return "data"
	case SignalClock:
		return "clock"
	case SignalLatch:
		return "latch"
	}
	return "signal(" + strconv.Itoa(int(s)) + ")"
}

// Edge is one write to a control line during a shift-out.
type Edge struct {
	Signal Signal
	Level  bool
}

// ShiftRegister is the firmware state of one register chain.
type ShiftRegister struct {
	OID          int
	DataPin      int
	ClockPin     int
	LatchPin     int
	NumRegisters int
	// State holds the pending bits, register 0 holding bits 0-7.
	State []byte
	// Latched holds what the outputs currently show.
	Latched []byte
	// LastShift records the control line writes of the latest update.
	LastShift []Edge
	// Updates counts shift-outs.
	Updates int
}

// Bit reports the latched level of an output bit.
func (sr *ShiftRegister) Bit(bit int) bool {
	if bit < 0 || bit/8 >= len(sr.Latched) {
		return false
	}
	return sr.Latched[bit/8]&(1<<(bit%8)) != 0
}

func (sr *ShiftRegister) clone() ShiftRegister {
	c := *sr
	c.State = append([]byte(nil), sr.State...)
	c.Latched = append([]byte(nil), sr.Latched...)
	c.LastShift = append([]Edge(nil), sr.LastShift...)
	return c
}

// DigitalOut is the firmware state of one digital output.
type DigitalOut struct {
	OID         int
	Pin         int
	Value       bool
	Default     bool
	MaxDuration int64
	// ShiftRegister is the register chain oid, 0 for a plain GPIO.
	ShiftRegister int
	// LastClock is the clock of the most recently scheduled event.
	LastClock int64
}

type event struct {
	clock int64
	seq   uint64
	oid   int
	value bool
}

// Firmware simulates controller firmware that executes the command stream
// produced by the host. It implements mcu.Sender.
type Firmware struct {
	mu sync.Mutex

	logger *slog.Logger

	finalized bool
	crc       uint32

	registers map[int]*ShiftRegister
	outputs   map[int]*DigitalOut
	oids      map[int]string
	gpio      map[int]bool

	clock   int64
	pending []event
	seq     uint64

	shutdown       bool
	shutdownReason string
}

var _ mcu.Sender = (*Firmware)(nil)

// New returns firmware in its power-on state. A nil logger uses
// slog.Default().
func New(logger *slog.Logger) *Firmware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Firmware{
		logger:    logger.With("component", "firmware"),
		registers: make(map[int]*ShiftRegister),
		outputs:   make(map[int]*DigitalOut),
		oids:      make(map[int]string),
		gpio:      make(map[int]bool),
	}
}

// Send executes one command.
func (f *Firmware) Send(msg mcu.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shutdown {
		return fmt.Errorf("%w: %s", ErrShutdown, f.shutdownReason)
	}

	l, err := msgproto.ParseLine(msg.Line)
	if err != nil {
		return f.fault(err)
	}
	format, ok := formats[l.Name]
	if !ok {
		return f.fault(fmt.Errorf("%w: %s", ErrUnknownCommand, l.Name))
	}
	args, err := format.Decode(l)
	if err != nil {
		return f.fault(err)
	}

	switch l.Name {
	case "config_shift_register":
		err = f.configShiftRegister(args)
	case "config_digital_out":
		err = f.configDigitalOut(args)
	case "finalize_config":
		err = f.finalizeConfig(args)
	case "queue_digital_out":
		err = f.queueDigitalOut(args)
	case "update_digital_out":
		err = f.updateDigitalOut(args)
	case "shift_register_set_pin":
		err = f.setRegisterPin(args)
	}
	if err != nil {
		return f.fault(err)
	}
	return nil
}

// fault shuts the firmware down the way a real controller does on a
// command error.
func (f *Firmware) fault(err error) error {
	f.enterShutdown(err.Error())
	return err
}

func (f *Firmware) allocOID(oid int, kind string) error {
	if f.finalized {
		return fmt.Errorf("firmware: %s oid %d after finalize_config", kind, oid)
	}
	if existing, ok := f.oids[oid]; ok {
		return fmt.Errorf("firmware: oid %d already allocated to %s", oid, existing)
	}
	f.oids[oid] = kind
	return nil
}

func (f *Firmware) configShiftRegister(args []int64) error {
	oid := int(args[0])
	if oid == 0 {
		return fmt.Errorf("firmware: shift register oid 0 is reserved")
	}
	if args[4] < 1 {
		return fmt.Errorf("firmware: shift register %d needs at least one register", oid)
	}
	if err := f.allocOID(oid, "shift_register"); err != nil {
		return err
	}

	sr := &ShiftRegister{
		OID:          oid,
		DataPin:      int(args[1]),
		ClockPin:     int(args[2]),
		LatchPin:     int(args[3]),
		NumRegisters: int(args[4]),
		State:        make([]byte, args[4]),
		Latched:      make([]byte, args[4]),
	}
	f.gpio[sr.DataPin] = false
	f.gpio[sr.ClockPin] = false
	f.gpio[sr.LatchPin] = true
	f.registers[oid] = sr
	f.shiftOut(sr)
	return nil
}

func (f *Firmware) configDigitalOut(args []int64) error {
	oid := int(args[0])
	out := &DigitalOut{
		OID:           oid,
		Pin:           int(args[1]),
		Value:         args[2] != 0,
		Default:       args[3] != 0,
		MaxDuration:   args[4],
		ShiftRegister: int(args[5]),
	}
	if out.ShiftRegister != 0 {
		sr, ok := f.registers[out.ShiftRegister]
		if !ok {
			return fmt.Errorf("firmware: invalid shift register oid %d", out.ShiftRegister)
		}
		if out.Pin >= sr.NumRegisters*8 {
			return fmt.Errorf("firmware: pin %d beyond shift register %d", out.Pin, sr.OID)
		}
	}
	if err := f.allocOID(oid, "digital_out"); err != nil {
		return err
	}
	f.outputs[oid] = out
	f.write(out, out.Value)
	return nil
}

func (f *Firmware) finalizeConfig(args []int64) error {
	if f.finalized {
		return fmt.Errorf("firmware: config already finalized")
	}
	f.finalized = true
	f.crc = uint32(args[0])
	f.logger.Debug("config finalized", "crc", f.crc, "oids", len(f.oids))
	return nil
}

func (f *Firmware) lookupOutput(oid int64) (*DigitalOut, error) {
	if !f.finalized {
		return nil, fmt.Errorf("firmware: command before finalize_config")
	}
	out, ok := f.outputs[int(oid)]
	if !ok {
		return nil, fmt.Errorf("firmware: oid %d is not a digital out", oid)
	}
	return out, nil
}

// extendClock widens a 32-bit wire clock to the full clock nearest to the
// firmware's current clock.
func (f *Firmware) extendClock(clock32 int64) int64 {
	full := f.clock&^0xffffffff | clock32
	if full < f.clock-(1<<31) {
		full += 1 << 32
	}
	return full
}

func (f *Firmware) queueDigitalOut(args []int64) error {
	out, err := f.lookupOutput(args[0])
	if err != nil {
		return err
	}
	clock := f.extendClock(args[1])
	if clock < out.LastClock {
		return fmt.Errorf("firmware: oid %d event at %d scheduled before %d", out.OID, clock, out.LastClock)
	}
	out.LastClock = clock
	f.seq++
	f.pending = append(f.pending, event{clock: clock, seq: f.seq, oid: out.OID, value: args[2] != 0})
	return nil
}

func (f *Firmware) updateDigitalOut(args []int64) error {
	out, err := f.lookupOutput(args[0])
	if err != nil {
		return err
	}
	f.write(out, args[1] != 0)
	return nil
}

func (f *Firmware) setRegisterPin(args []int64) error {
	sr, ok := f.registers[int(args[0])]
	if !ok {
		return fmt.Errorf("firmware: oid %d is not a shift register", args[0])
	}
	f.setBit(sr, int(args[1]), args[2] != 0)
	f.shiftOut(sr)
	return nil
}

func (f *Firmware) write(out *DigitalOut, value bool) {
	out.Value = value
	if out.ShiftRegister == 0 {
		f.gpio[out.Pin] = value
		return
	}
	sr := f.registers[out.ShiftRegister]
	f.setBit(sr, out.Pin, value)
	f.shiftOut(sr)
}

func (f *Firmware) setBit(sr *ShiftRegister, bit int, value bool) {
	reg, mask := bit/8, byte(1)<<(bit%8)
	if reg >= sr.NumRegisters {
		return
	}
	if value {
		sr.State[reg] |= mask
	} else {
		sr.State[reg] &^= mask
	}
}

// shiftOut clocks the state out MSB first, last register first, then
// latches it.
func (f *Firmware) shiftOut(sr *ShiftRegister) {
	edges := make([]Edge, 0, 2+sr.NumRegisters*8*3)
	edges = append(edges, Edge{SignalLatch, false})
	for i := sr.NumRegisters - 1; i >= 0; i-- {
		for j := 7; j >= 0; j-- {
			bit := sr.State[i]>>j&1 != 0
			edges = append(edges, Edge{SignalData, bit}, Edge{SignalClock, true}, Edge{SignalClock, false})
		}
	}
	edges = append(edges, Edge{SignalLatch, true})

	sr.LastShift = edges
	copy(sr.Latched, sr.State)
	sr.Updates++
	f.gpio[sr.LatchPin] = true
	f.gpio[sr.ClockPin] = false
	if n := len(edges); n >= 4 {
		f.gpio[sr.DataPin] = edges[n-4].Level
	}
}

// AdvanceTo runs every queued event scheduled at or before clock.
func (f *Firmware) AdvanceTo(clock int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if clock < f.clock || f.shutdown {
		return
	}
	sort.SliceStable(f.pending, func(i, j int) bool {
		if f.pending[i].clock != f.pending[j].clock {
			return f.pending[i].clock < f.pending[j].clock
		}
		return f.pending[i].seq < f.pending[j].seq
	})

	n := 0
	for _, ev := range f.pending {
		if ev.clock > clock {
			break
		}
		f.write(f.outputs[ev.oid], ev.value)
		n++
	}
	f.pending = append(f.pending[:0], f.pending[n:]...)
	f.clock = clock
}

// Shutdown stops the firmware: queued events are dropped, shift registers
// clear and every digital out returns to its default value.
func (f *Firmware) Shutdown(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enterShutdown(reason)
}

func (f *Firmware) enterShutdown(reason string) {
	if f.shutdown {
		return
	}
	f.shutdown = true
	f.shutdownReason = reason
	f.pending = nil
	f.logger.Warn("shutdown", "reason", reason)

	for _, sr := range f.registers {
		for i := range sr.State {
			sr.State[i] = 0
		}
	}
	for _, out := range sortedOutputs(f.outputs) {
		out.Value = out.Default
		if out.ShiftRegister == 0 {
			f.gpio[out.Pin] = out.Default
			continue
		}
		f.setBit(f.registers[out.ShiftRegister], out.Pin, out.Default)
	}
	for _, sr := range f.registers {
		f.shiftOut(sr)
	}
}

func sortedOutputs(m map[int]*DigitalOut) []*DigitalOut {
	outs := make([]*DigitalOut, 0, len(m))
	for _, out := range m {
		outs = append(outs, out)
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].OID < outs[j].OID })
	return outs
}

// IsShutdown reports whether the firmware has shut down and why.
func (f *Firmware) IsShutdown() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown, f.shutdownReason
}

// IsFinalized reports whether finalize_config was received.
func (f *Firmware) IsFinalized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized
}

// CRC returns the configuration checksum sent with finalize_config.
func (f *Firmware) CRC() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.crc
}

// Clock returns the clock the firmware has advanced to.
func (f *Firmware) Clock() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

// Pending returns the number of queued events not yet run.
func (f *Firmware) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Register returns a copy of the shift register with the given oid.
func (f *Firmware) Register(oid int) (ShiftRegister, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sr, ok := f.registers[oid]
	if !ok {
		return ShiftRegister{}, false
	}
	return sr.clone(), true
}

// Registers returns copies of every shift register ordered by oid.
func (f *Firmware) Registers() []ShiftRegister {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ShiftRegister, 0, len(f.registers))
	for _, sr := range f.registers {
		out = append(out, sr.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OID < out[j].OID })
	return out
}

// Output returns a copy of the digital out with the given oid.
func (f *Firmware) Output(oid int) (DigitalOut, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outputs[oid]
	if !ok {
		return DigitalOut{}, false
	}
	return *out, true
}

// GPIO returns the level of a plain controller pin.
func (f *Firmware) GPIO(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gpio[pin]
}
