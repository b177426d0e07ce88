package scheduler

import (
	"sync"
	"time"

	"github.com/chrisdamba/deliverysim/internal/models"
)

// Virtual is a manually advanced clock. Callbacks run on the goroutine calling Advance.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	queue *models.EventQueue
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start, queue: models.NewEventQueue()}
}

type virtualTimer struct {
	v     *Virtual
	event *models.Event
}

func (vt *virtualTimer) Stop() bool {
	return vt.v.queue.Remove(vt.event)
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	ev := &models.Event{Time: v.Now().Add(d), Type: "timer", Data: f}
	v.queue.Enqueue(ev)
	return &virtualTimer{v: v, event: ev}
}

// Advance moves the clock forward by d, running every callback due on the way in time
// order. Callbacks armed while advancing run too if they fall inside the window.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		next := v.queue.Peek()
		if next == nil || next.Time.After(target) {
			break
		}
		ev := v.queue.Dequeue()
		v.mu.Lock()
		if ev.Time.After(v.now) {
			v.now = ev.Time
		}
		v.mu.Unlock()
		ev.Data.(func())()
	}

	v.mu.Lock()
	v.now = target
	v.mu.Unlock()
}

// Pending reports how many callbacks are armed.
func (v *Virtual) Pending() int {
	return v.queue.Len()
}
