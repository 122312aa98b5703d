package gui

import (
	"sync"
	"time"
)

// Ticker calls fn at a fixed interval while started. Every call runs between
// lock and unlock so the callback can touch widgets. A tick that was already
// waiting for the lock when Stop ran is dropped.
type Ticker struct {
	lock   func()
	unlock func()
	fn     func()

	mu   sync.Mutex
	gen  int
	stop chan struct{}
}

func NewTicker(lock, unlock func(), fn func()) *Ticker {
	return &Ticker{lock: lock, unlock: unlock, fn: fn}
}

// Start replaces any running schedule with one at interval.
func (t *Ticker) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	t.mu.Lock()
	t.stopLocked()
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(gen, interval, stop)
}

// Stop never waits for the ticker goroutine, so it can be called from inside
// fn.
func (t *Ticker) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.mu.Unlock()
}

func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Ticker) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
		t.gen++
	}
}

func (t *Ticker) current(gen int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen == gen
}

func (t *Ticker) run(gen int, interval time.Duration, stop <-chan struct{}) {
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			t.lock()
			if t.current(gen) {
				t.fn()
			}
			t.unlock()
		}
	}
}
