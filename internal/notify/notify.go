// Package notify delivers user-visible notifications from the stores to the
// presentation layer.
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Notification is a single message shown to the user.
type Notification struct {
	Level   Level
	Message string
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(n Notification)

// Notify implements Notifier.
func (f Func) Notify(n Notification) { f(n) }

// Nop drops every notification.
var Nop Notifier = Func(func(Notification) {})

// Warn sends a warning to n.
func Warn(n Notifier, format string, args ...any) {
	n.Notify(Notification{Level: LevelWarn, Message: fmt.Sprintf(format, args...)})
}

// Info sends an informational message to n.
func Info(n Notifier, format string, args ...any) {
	n.Notify(Notification{Level: LevelInfo, Message: fmt.Sprintf(format, args...)})
}

// Error sends an error message to n.
func Error(n Notifier, err error) {
	n.Notify(Notification{Level: LevelError, Message: err.Error()})
}

// Writer renders notifications as lines on an io.Writer. It is also an
// io.Writer itself, so other output can share the same lock and never
// interleaves with a notification.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer printing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Notify implements Notifier.
func (w *Writer) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch n.Level {
	case LevelInfo:
		_, _ = fmt.Fprintln(w.w, n.Message)
	default:
		_, _ = fmt.Fprintf(w.w, "[%s] %s\n", n.Level, n.Message)
	}
}

// Write writes p as a single unit.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Count returns how many notifications of the given level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

// Reset forgets recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
