// Package scheduler provides the clock and timer abstraction every time-driven
// component runs on. Production code uses a Loop, tests use a Virtual clock.
package scheduler

import (
	"sync"
	"time"
)

// Timer is a handle to a pending callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call stopped it.
	Stop() bool
}

type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type repeating struct {
	mu      sync.Mutex
	current Timer
	stopped bool
}

func (r *repeating) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.stopped = true
	if r.current != nil {
		r.current.Stop()
	}
	return true
}

// Every runs f every d until the returned Timer is stopped. The first run happens after d.
func Every(s Scheduler, d time.Duration, f func()) Timer {
	r := &repeating{}
	var arm func()
	arm = func() {
		r.current = s.AfterFunc(d, func() {
			r.mu.Lock()
			if r.stopped {
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
			f()
			r.mu.Lock()
			if !r.stopped {
				arm()
			}
			r.mu.Unlock()
		})
	}
	r.mu.Lock()
	arm()
	r.mu.Unlock()
	return r
}
