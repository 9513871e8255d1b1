package live

import (
	"sync"
	"time"
)

// Debounce holds at most one pending action. Reschedule replaces the pending
// timer; the action runs exactly once if no reschedule or stop preempts expiry.
type Debounce struct {
	mu sync.Mutex
	t  *time.Timer
	fn func()
}

func NewDebounce(fn func()) *Debounce {
	return &Debounce{fn: fn}
}

func (d *Debounce) Reschedule(after time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
	}
	d.t = time.AfterFunc(after, d.fn)
}

func (d *Debounce) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
		d.t = nil
	}
}
