package trace

import (
	"io"
	"sync"

	"fortio.org/safecast"
)

// RingTracer keeps the most recent events in memory.
type RingTracer struct {
	mu    sync.Mutex
	buf   []Event
	total uint64 // events ever emitted
	level Level
}

// NewRingTracer keeps up to capacity events (4096 when capacity <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{buf: make([]Event, 0, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) < cap(t.buf) {
		t.buf = append(t.buf, *ev)
	} else {
		t.buf[t.total%uint64(cap(t.buf))] = *ev
	}
	t.total++
}

// Snapshot returns the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, 0, len(t.buf))
	if len(t.buf) < cap(t.buf) {
		return append(out, t.buf...)
	}
	head := safecast.MustConv[int](t.total % safecast.MustConv[uint64](cap(t.buf)))
	out = append(out, t.buf[head:]...)
	return append(out, t.buf[:head]...)
}

// Dropped reports how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total - uint64(len(t.buf))
}

// Dump writes the retained events to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error { return nil }
func (t *RingTracer) Close() error { return nil }
func (t *RingTracer) Level() Level { return t.level }
