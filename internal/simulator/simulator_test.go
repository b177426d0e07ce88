package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/routing"
	"github.com/chrisdamba/deliverysim/internal/scheduler"
)

type recordingOutput struct {
	mu       sync.Mutex
	messages map[string][][]byte
	closed   bool
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{messages: make(map[string][][]byte)}
}

func (r *recordingOutput) WriteMessage(topic string, msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[topic] = append(r.messages[topic], msg)
	return nil
}

func (r *recordingOutput) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingOutput) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[topic])
}

type countingSink struct {
	events int
	err    error
}

func (c *countingSink) RecordEvent(models.Event) error {
	c.events++
	return c.err
}

func newTestSimulator(t *testing.T, cfg *models.Config, opts ...Option) (*Simulator, *scheduler.Virtual, *recordingOutput) {
	t.Helper()
	clock := scheduler.NewVirtual(testEpoch)
	out := newRecordingOutput()
	fd := fixedDestinations{{X: 50, Y: 50}}
	opts = append([]Option{WithOutput(out), WithDestinations(&fd)}, opts...)
	sim, err := NewSimulator(cfg, clock, opts...)
	require.NoError(t, err)
	return sim, clock, out
}

func TestNewSimulatorRejectsInvalidConfig(t *testing.T) {
	_, err := NewSimulator(nil, scheduler.NewVirtual(testEpoch))
	assert.Error(t, err)

	cfg := models.DefaultConfig()
	cfg.Planner = "teleport"
	_, err = NewSimulator(cfg, scheduler.NewVirtual(testEpoch))
	assert.Error(t, err)
}

func TestNewSimulatorSelectsPlanner(t *testing.T) {
	cfg := models.DefaultConfig()
	sim, _, _ := newTestSimulator(t, cfg)
	planner, ok := sim.Planner.(*routing.TrafficAware)
	require.True(t, ok)
	assert.Equal(t, cfg.TrafficPenalty, planner.Penalty)

	cfg = models.DefaultConfig()
	cfg.Planner = "axis"
	sim, _, _ = newTestSimulator(t, cfg)
	assert.IsType(t, routing.AxisAligned{}, sim.Planner)
}

func TestSimulatorPublishesDeliveryLifecycle(t *testing.T) {
	sink := &countingSink{}
	sim, clock, out := newTestSimulator(t, models.DefaultConfig(), WithMetrics(sink))

	var observed []models.Event
	sim.Subscribe(func(ev models.Event) { observed = append(observed, ev) })

	sim.Start()
	order, err := sim.PlaceOrder("Pepperoni")
	require.NoError(t, err)
	assert.Equal(t, "Pepperoni", order.Item)

	clock.Advance(19 * time.Second)

	assert.Equal(t, 1, out.count(TopicOrderPlaced))
	assert.Equal(t, 1, out.count(TopicOrderReady))
	assert.Equal(t, 1, out.count(TopicDeliveryStarted))
	assert.Equal(t, 1, out.count(TopicDeliveryCompleted))
	assert.Equal(t, 0, out.count(TopicDeliveryCancelled))
	// one snapshot at start, then a toggle at 5s, 10s and 15s
	assert.Equal(t, 4, out.count(TopicTrafficSignals))
	// ticks 0, 30, ..., 600
	assert.Equal(t, 21, out.count(TopicVehicleState))

	var last VehicleStateEvent
	states := out.messages[TopicVehicleState]
	require.NoError(t, json.Unmarshal(states[len(states)-1], &last))
	assert.Equal(t, models.StatusTextDelivered, last.StatusText)
	assert.Equal(t, 50.0, last.X)
	assert.Equal(t, 50.0, last.Y)

	frames := 0
	for _, ev := range observed {
		if ev.Type == models.EventVehicleState {
			frames++
		}
	}
	assert.Equal(t, 601, frames, "observers see every frame")
	assert.Equal(t, len(observed), sink.events)

	snap := sim.Snapshot()
	assert.Equal(t, models.SessionIdle, snap.State)
	assert.Nil(t, snap.Delivery)
	assert.Equal(t, 1, snap.Orders)
	assert.Equal(t, models.Point{X: 20, Y: 20}, snap.Vehicle.Position)
	assert.Len(t, snap.Roads, 12)
	assert.Len(t, snap.Signals, 4)

	require.NoError(t, sim.Stop())
	assert.True(t, out.closed)
	assert.Equal(t, 0, clock.Pending())
}

func TestSimulatorSnapshotShowsActiveDelivery(t *testing.T) {
	sim, clock, _ := newTestSimulator(t, models.DefaultConfig())
	_, err := sim.PlaceOrder("Hawaiian")
	require.NoError(t, err)

	clock.Advance(12 * time.Second)
	snap := sim.Snapshot()
	assert.Equal(t, models.SessionAnimating, snap.State)
	require.NotNil(t, snap.Delivery)
	assert.Equal(t, "Hawaiian", snap.Delivery.Item)
	assert.Equal(t, testEpoch.Add(12*time.Second).UnixMilli(), snap.Timestamp)
}

func TestSimulatorRejectsUnknownItem(t *testing.T) {
	sim, _, out := newTestSimulator(t, models.DefaultConfig())
	_, err := sim.PlaceOrder("Calzone")
	assert.ErrorContains(t, err, "Calzone")
	assert.Equal(t, 0, out.count(TopicOrderPlaced))
}

func TestSimulatorOrderGeneratorStopsAtMaxOrders(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.OrderInterval = time.Second
	cfg.MaxOrders = 2
	sim, clock, out := newTestSimulator(t, cfg)

	sim.Start()
	clock.Advance(5 * time.Second)
	assert.Equal(t, 2, out.count(TopicOrderPlaced))

	clock.Advance(30 * time.Second)
	assert.Equal(t, 2, out.count(TopicOrderPlaced))
	assert.Equal(t, 1, out.count(TopicDeliveryCancelled), "the second order supersedes the first")
	assert.Equal(t, 1, out.count(TopicDeliveryCompleted))
}

func TestSimulatorVehicleSamplingDisabled(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.StateSampleTicks = 0
	sim, clock, out := newTestSimulator(t, cfg)

	_, err := sim.PlaceOrder("Margherita")
	require.NoError(t, err)
	clock.Advance(19 * time.Second)

	assert.Equal(t, 1, out.count(TopicVehicleState), "only the delivered frame")
}

func TestSimulatorMetricsErrorDoesNotBlockOutput(t *testing.T) {
	sink := &countingSink{err: errors.New("sink down")}
	sim, _, out := newTestSimulator(t, models.DefaultConfig(), WithMetrics(sink))

	_, err := sim.PlaceOrder("Margherita")
	require.NoError(t, err)
	assert.Equal(t, 1, sink.events)
	assert.Equal(t, 1, out.count(TopicOrderPlaced))
}

func TestSimulatorRunOnLoop(t *testing.T) {
	loop := scheduler.NewLoop()
	out := newRecordingOutput()
	sim, err := NewSimulator(models.DefaultConfig(), loop, WithOutput(out))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, loop) }()

	var order models.Order
	require.NoError(t, loop.Do(ctx, func() {
		order, err = sim.PlaceOrder("Vegetarian")
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)

	var snap Snapshot
	require.NoError(t, loop.Do(ctx, func() { snap = sim.Snapshot() }))
	assert.Equal(t, 1, snap.Orders)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, out.closed)
	assert.Equal(t, 1, out.count(TopicOrderPlaced))
	assert.GreaterOrEqual(t, out.count(TopicTrafficSignals), 1)
}
