// Package animator moves the vehicle along a planned path one tick at a time.
package animator

import (
	"math"
	"time"

	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/scheduler"
)

const TicksPerSecond = 60

// Frame is the vehicle's state after one tick.
type Frame struct {
	Tick       int
	TotalTicks int
	Progress   float64
	Position   models.Point
	EtaMinutes int
	StatusText string
	Delivered  bool
}

// VehicleState renders the frame for the presentation layer.
func (f Frame) VehicleState(v models.Vehicle) models.VehicleState {
	return models.VehicleState{
		VehicleID:  v.ID,
		Position:   f.Position,
		Status:     v.Status,
		StatusText: f.StatusText,
		Progress:   f.Progress,
		EtaMinutes: f.EtaMinutes,
		Tick:       f.Tick,
	}
}

// Animator runs at most one traversal at a time. It is not safe for concurrent use; drive it
// from the goroutine that runs its scheduler's callbacks.
type Animator struct {
	sched    scheduler.Scheduler
	vehicle  *models.Vehicle
	observer func(Frame)

	path       []models.Point
	total      time.Duration
	totalTicks int
	step       time.Duration
	tick       int
	segment    int

	generation uint64
	timer      scheduler.Timer
	active     bool
}

func New(s scheduler.Scheduler, vehicle *models.Vehicle, observer func(Frame)) *Animator {
	if observer == nil {
		observer = func(Frame) {}
	}
	return &Animator{sched: s, vehicle: vehicle, observer: observer}
}

// Start cancels any running traversal and begins a new one along path lasting total. The first
// frame is emitted before Start returns. Paths shorter than two points are ignored.
func (a *Animator) Start(path []models.Point, total time.Duration) bool {
	a.Stop()
	if len(path) < 2 {
		return false
	}

	a.path = append([]models.Point(nil), path...)
	a.total = total
	a.totalTicks = int(total * TicksPerSecond / time.Second)
	if a.totalTicks < 1 {
		a.totalTicks = 1
	}
	a.step = total / time.Duration(a.totalTicks)
	a.tick = 0
	a.segment = 0
	a.active = true
	a.vehicle.Status = models.VehicleStatusDelivering

	a.advance(a.generation)
	return true
}

// Stop cancels the running traversal without emitting a frame.
func (a *Animator) Stop() bool {
	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	wasActive := a.active
	a.active = false
	return wasActive
}

// Park stops any traversal and leaves the vehicle idle at p.
func (a *Animator) Park(p models.Point) {
	a.Stop()
	a.vehicle.Position = p
	a.vehicle.Status = models.VehicleStatusIdle
}

func (a *Animator) Active() bool { return a.active }

func (a *Animator) advance(gen uint64) {
	if gen != a.generation || !a.active {
		return
	}

	frame := a.frame()
	a.vehicle.Position = frame.Position

	if frame.Delivered {
		a.active = false
		a.timer = nil
	} else {
		a.tick++
		a.timer = a.sched.AfterFunc(a.step, func() { a.advance(gen) })
	}
	a.observer(frame)
}

func (a *Animator) frame() Frame {
	progress := float64(a.tick) / float64(a.totalTicks)
	if progress > 1 {
		progress = 1
	}
	n := len(a.path)

	raw := progress*float64(n) - float64(a.segment)
	for raw >= 1 && a.segment+2 < n {
		a.segment++
		raw = progress*float64(n) - float64(a.segment)
	}

	f := Frame{
		Tick:       a.tick,
		TotalTicks: a.totalTicks,
		Progress:   progress,
		Position:   models.Lerp(a.path[a.segment], a.path[a.segment+1], math.Min(1, raw)),
		EtaMinutes: etaMinutes(progress, a.total),
		StatusText: models.StatusTextDelivering,
	}
	if progress >= 1 {
		f.Position = a.path[n-1]
		f.EtaMinutes = 0
		f.StatusText = models.StatusTextDelivered
		f.Delivered = true
	}
	return f
}

func etaMinutes(progress float64, total time.Duration) int {
	remaining := (1 - progress) * float64(total.Milliseconds()) / 60000
	return int(math.Ceil(remaining))
}
