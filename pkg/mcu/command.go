package mcu

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/msgproto"
)

// ErrClockOrder is returned when a command's minimum clock lies after its
// requested clock.
var ErrClockOrder = errors.New("mcu: min clock after requested clock")

// MessageKind separates configuration traffic from runtime commands.
type MessageKind uint8

const (
	KindConfig MessageKind = iota
	KindCommand
)

func (k MessageKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindCommand:
		return "command"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Message is one encoded command on its way to the firmware.
type Message struct {
	Kind MessageKind
	Line string
	// MinClock is the earliest clock the command may be transmitted at and
	// ReqClock the clock it must arrive before. Zero for configuration.
	MinClock int64
	ReqClock int64
	// Queue is the command queue id; 0 for configuration.
	Queue int
}

// Sender delivers messages to the firmware.
type Sender interface {
	Send(msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(Message) error

func (f SenderFunc) Send(msg Message) error {
	return f(msg)
}

// Discard is a Sender that drops every message.
var Discard Sender = SenderFunc(func(Message) error { return nil })

// CommandQueue groups commands that must reach the firmware in the order
// they were sent.
type CommandQueue struct {
	id int
}

// ID returns the queue id.
func (q *CommandQueue) ID() int {
	return q.id
}

// AllocCommandQueue creates a new command queue.
func (m *MCU) AllocCommandQueue() *CommandQueue {
	m.queues++
	return &CommandQueue{id: m.queues}
}

// Command is a command template bound to a controller and queue.
type Command struct {
	mcu    *MCU
	format *msgproto.Format
	queue  *CommandQueue
}

// LookupCommand parses a format string into a command template. A nil
// queue sends on a fresh queue of its own.
func (m *MCU) LookupCommand(format string, cq *CommandQueue) (*Command, error) {
	f, err := msgproto.ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("mcu %s: %w", m.name, err)
	}
	if cq == nil {
		cq = m.AllocCommandQueue()
	}
	return &Command{mcu: m, format: f, queue: cq}, nil
}

// Format returns the command's message format.
func (c *Command) Format() *msgproto.Format {
	return c.format
}

// Queue returns the queue the command is sent on.
func (c *Command) Queue() *CommandQueue {
	return c.queue
}

// Send encodes args and hands the command to the transport. Commands are
// delivered in call order; minClock and reqClock are passed through for the
// transport's scheduling.
func (c *Command) Send(args []int64, minClock, reqClock int64) error {
	m := c.mcu
	if !m.finalized {
		return fmt.Errorf("%w: %s", ErrNotReady, c.format.Name)
	}
	if minClock < 0 || reqClock < 0 {
		return fmt.Errorf("%w: negative clock for %s", ErrClockOrder, c.format.Name)
	}
	if reqClock != 0 && minClock > reqClock {
		return fmt.Errorf("%w: %s min %d req %d", ErrClockOrder, c.format.Name, minClock, reqClock)
	}

	line, err := c.format.Encode(args...)
	if err != nil {
		return fmt.Errorf("mcu %s: %w", m.name, err)
	}
	return m.sender.Send(Message{
		Kind:     KindCommand,
		Line:     line,
		MinClock: minClock,
		ReqClock: reqClock,
		Queue:    c.queue.id,
	})
}
