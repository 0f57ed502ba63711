package ratewindow

import (
	"sync"
	"time"
)

// maxSamples bounds the history so a traffic burst cannot grow the window
// without limit. Oldest samples fall off first.
const maxSamples = 100000

// Window counts events over a sliding interval and reports them as a rate.
// Samples older than the interval are discarded on both record and read, so
// an idle window always reads zero.
type Window struct {
	mu      sync.Mutex
	size    time.Duration
	samples []time.Time
	now     func() time.Time
}

func New(size time.Duration) *Window {
	if size <= 0 {
		size = time.Second
	}
	return &Window{
		size: size,
		now:  time.Now,
	}
}

// Record registers one event at the current time.
func (w *Window) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.now())
	if len(w.samples) >= maxSamples {
		w.samples = w.samples[1:]
	}
	w.samples = append(w.samples, w.now())
}

// Rate returns events per second over the window interval.
func (w *Window) Rate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.now())
	return float64(len(w.samples)) / w.size.Seconds()
}

// Count returns the number of events still inside the window.
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.now())
	return len(w.samples)
}

func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.size)
	i := 0
	for i < len(w.samples) && !w.samples[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}
