// Package notice carries user-facing, non-fatal messages (the "toast" of a
// board view) from the drag controller and the reconciler to whoever renders them.
package notice

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level
	Message string
	At      time.Time
}

func New(level Level, message string) Notice {
	return Notice{Level: level, Message: message, At: time.Now()}
}

// Sink receives notices. Notify must not block the caller.
type Sink interface {
	Notify(n Notice)
}

// Discard drops every notice.
var Discard Sink = discard{} //nolint:gochecknoglobals // stateless sink

type discard struct{}

func (discard) Notify(Notice) {}

// LogSink writes notices to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(n Notice) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = s.logger.Error()
	case LevelWarning:
		ev = s.logger.Warn()
	default:
		ev = s.logger.Info()
	}
	ev.Str("level_hint", string(n.Level)).Msg(n.Message)
}

// Buffer queues notices for a consumer. When the queue is full the oldest
// unread notice is kept and the new one is dropped.
type Buffer struct {
	ch chan Notice
}

func NewBuffer(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{ch: make(chan Notice, size)}
}

func (b *Buffer) Notify(n Notice) {
	select {
	case b.ch <- n:
	default:
	}
}

// C returns the queue of pending notices.
func (b *Buffer) C() <-chan Notice {
	return b.ch
}

// Recorder keeps every notice in memory; handy for headless sessions and tests.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// All returns a copy of the recorded notices in arrival order.
func (r *Recorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Fanout forwards each notice to every sink.
type Fanout []Sink

func (f Fanout) Notify(n Notice) {
	for _, s := range f {
		if s != nil {
			s.Notify(n)
		}
	}
}
