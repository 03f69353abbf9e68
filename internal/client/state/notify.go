package state

import (
	"sync"

	"go.uber.org/zap"
)

// Notifier surfaces user-visible messages (the toast layer).
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes messages to a zap logger.
type LogNotifier struct {
	Log *zap.Logger
}

// Success logs msg at info level.
func (n LogNotifier) Success(msg string) { n.Log.Info(msg) }

// Error logs msg at warn level; it is a user-facing failure, not a fault.
func (n LogNotifier) Error(msg string) { n.Log.Warn(msg) }

// Message is one recorded notification.
type Message struct {
	Error bool
	Text  string
}

// Recorder keeps every message it receives. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Success records a success message.
func (r *Recorder) Success(msg string) { r.add(Message{Text: msg}) }

// Error records an error message.
func (r *Recorder) Error(msg string) { r.add(Message{Error: true, Text: msg}) }

func (r *Recorder) add(m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
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
