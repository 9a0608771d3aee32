// Package trace records the command stream sent to the firmware as a
// sequence of CBOR-encoded events.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("trace: writer closed")

// Event is one traced message. CBOR encoding uses integer keys for
// compactness.
type Event struct {
	Seq      uint64    `cbor:"1,keyasint"`
	Session  string    `cbor:"2,keyasint"`
	Time     time.Time `cbor:"3,keyasint"`
	Kind     string    `cbor:"4,keyasint"`
	Line     string    `cbor:"5,keyasint"`
	MinClock int64     `cbor:"6,keyasint,omitempty"`
	ReqClock int64     `cbor:"7,keyasint,omitempty"`
	Queue    int       `cbor:"8,keyasint,omitempty"`
}

// Message converts the event back into the message it recorded.
func (e Event) Message() mcu.Message {
	kind := mcu.KindCommand
	if e.Kind == mcu.KindConfig.String() {
		kind = mcu.KindConfig
	}
	return mcu.Message{Kind: kind, Line: e.Line, MinClock: e.MinClock, ReqClock: e.ReqClock, Queue: e.Queue}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR decoder mode: %v", err))
	}
}

// Writer is an mcu.Sender that encodes every message to an io.Writer before
// forwarding it to the next Sender. It is safe for concurrent use.
type Writer struct {
	next    mcu.Sender
	session uuid.UUID
	now     func() time.Time
	closer  io.Closer

	mu     sync.Mutex
	enc    *cbor.Encoder
	seq    uint64
	closed bool
}

// NewWriter returns a Writer tracing to w. next may be nil.
func NewWriter(w io.Writer, next mcu.Sender) *Writer {
	return &Writer{
		next:    next,
		session: uuid.New(),
		now:     time.Now,
		enc:     encMode.NewEncoder(w),
	}
}

// Create opens path for appending and returns a Writer tracing to it.
func Create(path string, next mcu.Sender) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f, next)
	w.closer = f
	return w, nil
}

// Session returns the id stamped on every event of this writer.
func (w *Writer) Session() uuid.UUID {
	return w.session
}

// Send records msg and forwards it. The message is recorded even when the
// next Sender rejects it.
func (w *Writer) Send(msg mcu.Message) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.seq++
	err := w.enc.Encode(Event{
		Seq:      w.seq,
		Session:  w.session.String(),
		Time:     w.now(),
		Kind:     msg.Kind.String(),
		Line:     msg.Line,
		MinClock: msg.MinClock,
		ReqClock: msg.ReqClock,
		Queue:    msg.Queue,
	})
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}

	if w.next == nil {
		return nil
	}
	return w.next.Send(msg)
}

// Close stops tracing and closes the file opened by Create. It is safe to
// call Close multiple times.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// ReadAll decodes every event from r.
func ReadAll(r io.Reader) ([]Event, error) {
	dec := decMode.NewDecoder(r)
	var events []Event
	for {
		var ev Event
		err := dec.Decode(&ev)
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("trace: event %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
}

// ReadFile decodes every event in the file at path.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}
