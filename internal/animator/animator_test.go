package animator

import (
	"testing"
	"time"

	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(x, y float64) models.Point { return models.Point{X: x, Y: y} }

type recorder struct {
	frames []Frame
}

func (r *recorder) observe(f Frame) { r.frames = append(r.frames, f) }

func (r *recorder) delivered() []Frame {
	var out []Frame
	for _, f := range r.frames {
		if f.Delivered {
			out = append(out, f)
		}
	}
	return out
}

func setup() (*scheduler.Virtual, *models.Vehicle, *recorder, *Animator) {
	v := scheduler.NewVirtual(time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))
	vehicle := &models.Vehicle{ID: "truck-1", Position: pt(20, 20), Status: models.VehicleStatusIdle}
	rec := &recorder{}
	return v, vehicle, rec, New(v, vehicle, rec.observe)
}

var route = []models.Point{pt(20, 20), pt(50, 20), pt(50, 50)}

func TestTickCountAndMidpoint(t *testing.T) {
	v, _, rec, a := setup()

	require.True(t, a.Start(route, 10*time.Second))
	require.Len(t, rec.frames, 1, "first frame is synchronous")
	assert.Equal(t, 0, rec.frames[0].Tick)
	assert.Equal(t, pt(20, 20), rec.frames[0].Position)
	assert.Equal(t, 1, rec.frames[0].EtaMinutes)

	v.Advance(10 * time.Second)
	require.Len(t, rec.frames, 601)

	mid := rec.frames[300]
	assert.Equal(t, 600, mid.TotalTicks)
	assert.Equal(t, 300, mid.Tick)
	assert.InDelta(t, 0.5, mid.Progress, 1e-12)
	assert.Equal(t, 1, mid.EtaMinutes)

	last := rec.frames[600]
	assert.True(t, last.Delivered)
	assert.Equal(t, 1.0, last.Progress)
	assert.Equal(t, 0, last.EtaMinutes)
	assert.Equal(t, models.StatusTextDelivered, last.StatusText)
	assert.Equal(t, pt(50, 50), last.Position)
	assert.False(t, a.Active())
	assert.Zero(t, v.Pending())
}

func TestProgressAndEtaAreMonotonic(t *testing.T) {
	v, _, rec, a := setup()
	a.Start(route, 3*time.Minute)
	v.Advance(3 * time.Minute)

	require.NotEmpty(t, rec.frames)
	assert.Equal(t, 3, rec.frames[0].EtaMinutes)
	for i := 1; i < len(rec.frames); i++ {
		prev, cur := rec.frames[i-1], rec.frames[i]
		assert.Greater(t, cur.Progress, prev.Progress)
		assert.LessOrEqual(t, cur.EtaMinutes, prev.EtaMinutes)
	}
	assert.Len(t, rec.delivered(), 1)
	assert.Equal(t, 1.0, rec.frames[len(rec.frames)-1].Progress)
}

func TestSegmentsShareTimeEqually(t *testing.T) {
	v, _, rec, a := setup()
	a.Start(route, 10*time.Second)
	v.Advance(10 * time.Second)

	// three waypoints split progress into thirds; the corner is reached at 1/3
	assertAt(t, pt(35, 20), rec.frames[100].Position)
	assertAt(t, pt(50, 20), rec.frames[200].Position)
	assertAt(t, pt(50, 35), rec.frames[300].Position)
	// held at the final waypoint once every segment is consumed
	assertAt(t, pt(50, 50), rec.frames[400].Position)
	assertAt(t, pt(50, 50), rec.frames[500].Position)
}

func assertAt(t *testing.T, want, got models.Point) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, "x of %v", got)
	assert.InDelta(t, want.Y, got.Y, 1e-9, "y of %v", got)
}

func TestTwoPointPath(t *testing.T) {
	v, vehicle, rec, a := setup()
	a.Start([]models.Point{pt(20, 20), pt(35, 35)}, time.Second)
	v.Advance(time.Second)

	require.Len(t, rec.frames, 61)
	assert.Equal(t, pt(35, 35), rec.frames[60].Position)
	assert.Equal(t, pt(35, 35), vehicle.Position)
	assert.Len(t, rec.delivered(), 1)
}

func TestRestartIsSingleFlight(t *testing.T) {
	v, vehicle, rec, a := setup()
	a.Start(route, 10*time.Second)
	v.Advance(3 * time.Second)

	second := []models.Point{pt(20, 20), pt(20, 50), pt(80, 50)}
	require.True(t, a.Start(second, 10*time.Second))
	v.Advance(30 * time.Second)

	delivered := rec.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, pt(80, 50), delivered[0].Position)
	assert.Equal(t, pt(80, 50), vehicle.Position)
	assert.Zero(t, v.Pending())
}

func TestDegeneratePathIsNoop(t *testing.T) {
	v, vehicle, rec, a := setup()
	assert.False(t, a.Start([]models.Point{pt(20, 20)}, 10*time.Second))
	assert.False(t, a.Start(nil, 10*time.Second))
	v.Advance(time.Minute)

	assert.Empty(t, rec.frames)
	assert.False(t, a.Active())
	assert.Equal(t, models.VehicleStatusIdle, vehicle.Status)
}

func TestStopAndPark(t *testing.T) {
	v, vehicle, rec, a := setup()
	a.Start(route, 10*time.Second)
	v.Advance(time.Second)
	count := len(rec.frames)

	assert.True(t, a.Stop())
	assert.False(t, a.Stop())
	v.Advance(time.Minute)
	assert.Len(t, rec.frames, count)

	a.Park(pt(20, 20))
	assert.Equal(t, pt(20, 20), vehicle.Position)
	assert.Equal(t, models.VehicleStatusIdle, vehicle.Status)
}

func TestRestartFromObserver(t *testing.T) {
	v := scheduler.NewVirtual(time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))
	vehicle := &models.Vehicle{ID: "truck-1"}
	var a *Animator
	var frames []Frame
	restarted := false
	a = New(v, vehicle, func(f Frame) {
		frames = append(frames, f)
		if f.Tick == 10 && !restarted {
			restarted = true
			a.Start([]models.Point{pt(80, 80), pt(20, 80)}, time.Second)
		}
	})
	a.Start(route, time.Second)
	v.Advance(5 * time.Second)

	last := frames[len(frames)-1]
	assert.True(t, last.Delivered)
	assert.Equal(t, pt(20, 80), last.Position)
	assert.Equal(t, 1, countDelivered(frames))
}

func countDelivered(frames []Frame) int {
	n := 0
	for _, f := range frames {
		if f.Delivered {
			n++
		}
	}
	return n
}

func TestShortDurationStillCompletes(t *testing.T) {
	v, _, rec, a := setup()
	a.Start(route, 5*time.Millisecond)
	require.Len(t, rec.frames, 1)
	v.Advance(time.Second)
	require.Len(t, rec.frames, 2)
	assert.True(t, rec.frames[1].Delivered)
}

func TestFrameVehicleState(t *testing.T) {
	f := Frame{Tick: 7, Progress: 0.25, Position: pt(30, 20), EtaMinutes: 1, StatusText: models.StatusTextDelivering}
	vs := f.VehicleState(models.Vehicle{ID: "truck-1", Status: models.VehicleStatusDelivering})
	assert.Equal(t, "truck-1", vs.VehicleID)
	assert.Equal(t, pt(30, 20), vs.Position)
	assert.Equal(t, 7, vs.Tick)
	assert.Equal(t, models.VehicleStatusDelivering, vs.Status)
}
