package mcu

import "sync"

// Recorder is an in-memory Sender useful for unit tests. It keeps every
// message in arrival order and can optionally forward or reject messages
// via OnSend.
type Recorder struct {
	OnSend func(Message) error

	mu       sync.Mutex
	messages []Message
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records msg, then passes it to OnSend when set. A message rejected
// by OnSend is still recorded.
func (r *Recorder) Send(msg Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	hook := r.OnSend
	r.mu.Unlock()

	if hook != nil {
		return hook(msg)
	}
	return nil
}

// Messages returns a copy of every recorded message.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Lines returns the recorded command lines of the given kind.
func (r *Recorder) Lines(kind MessageKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lines []string
	for _, m := range r.messages {
		if m.Kind == kind {
			lines = append(lines, m.Line)
		}
	}
	return lines
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Reset forgets every recorded message.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}
