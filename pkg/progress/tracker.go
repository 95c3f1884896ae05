// Package progress reports coarse operation progress. The archive
// engine talks to a Sink; the terminal Tracker is one implementation
// and a no-op sink is another, so operations succeed with no progress
// reporting wired at all.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Sink receives progress events from a pack or unpack operation. A
// phase starts with SetMessage/SetTotal and advances with Inc. Finish
// must be called exactly once when the operation ends.
type Sink interface {
	// SetTotal sets the number of items in the current phase.
	SetTotal(total uint64)
	// Inc records n completed items.
	Inc(n uint64)
	// SetMessage names the current phase and resets the item count.
	SetMessage(message string)
	// Finish stops reporting and releases any resources.
	Finish()
}

type nopSink struct{}

func (nopSink) SetTotal(uint64)   {}
func (nopSink) Inc(uint64)        {}
func (nopSink) SetMessage(string) {}
func (nopSink) Finish()           {}

// Nop returns a sink that discards all events.
func Nop() Sink {
	return nopSink{}
}

// Tracker renders progress to a terminal, redrawing one status line a
// few times per second.
type Tracker struct {
	out io.Writer

	mu      sync.Mutex
	message string
	total   uint64
	count   uint64

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewTracker starts a tracker rendering to stderr.
func NewTracker() *Tracker {
	return newTracker(os.Stderr)
}

func newTracker(out io.Writer) *Tracker {
	t := &Tracker{
		out:     out,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go t.loop()
	return t
}

// SetTotal implements Sink.
func (t *Tracker) SetTotal(total uint64) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()
}

// Inc implements Sink.
func (t *Tracker) Inc(n uint64) {
	t.mu.Lock()
	t.count += n
	t.mu.Unlock()
}

// SetMessage implements Sink. Changing the message starts a new phase,
// so the item count resets.
func (t *Tracker) SetMessage(message string) {
	t.mu.Lock()
	t.message = message
	t.count = 0
	t.mu.Unlock()
}

// Finish implements Sink. It renders a final status line and stops the
// redraw loop. Safe to call more than once.
func (t *Tracker) Finish() {
	t.once.Do(func() {
		close(t.done)
		<-t.stopped
	})
}

func (t *Tracker) loop() {
	defer close(t.stopped)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.render(false)
		case <-t.done:
			t.render(true)
			return
		}
	}
}

func (t *Tracker) render(final bool) {
	t.mu.Lock()
	message, total, count := t.message, t.total, t.count
	t.mu.Unlock()

	if message == "" && total == 0 && count == 0 {
		return
	}

	if total > 0 {
		percent := float64(count) / float64(total) * 100
		fmt.Fprintf(t.out, "\r%s: %d/%d (%.1f%%)", message, count, total, percent)
	} else {
		fmt.Fprintf(t.out, "\r%s: %d", message, count)
	}
	if final {
		fmt.Fprintln(t.out)
	}
}
