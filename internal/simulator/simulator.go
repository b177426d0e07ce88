package simulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrisdamba/deliverysim/internal/logger"
	"github.com/chrisdamba/deliverysim/internal/metrics"
	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/roadnet"
	"github.com/chrisdamba/deliverysim/internal/routing"
	"github.com/chrisdamba/deliverysim/internal/scheduler"
	"github.com/chrisdamba/deliverysim/internal/traffic"
)

// Snapshot is the simulation state shown to the presentation layer.
type Snapshot struct {
	State     models.SessionState    `json:"state"`
	Vehicle   models.Vehicle         `json:"vehicle"`
	Delivery  *models.Delivery       `json:"delivery,omitempty"`
	Signals   []models.TrafficSignal `json:"signals"`
	Roads     []models.RoadSegment   `json:"roads"`
	Depot     models.Point           `json:"depot"`
	Orders    int                    `json:"orders_placed"`
	Timestamp int64                  `json:"timestamp"`
}

type Simulator struct {
	Config  *models.Config
	Network *roadnet.Network
	Signals *traffic.Controller
	Planner routing.Planner
	Orders  *OrderFactory
	Session *Session

	sched        scheduler.Scheduler
	destinations DestinationSource
	output       OutputDestination
	metrics      metrics.Sink
	log          logger.Logger

	observers    []func(models.Event)
	signalTimer  scheduler.Timer
	orderTimer   scheduler.Timer
	ordersPlaced int
}

type Option func(*Simulator)

func WithOutput(o OutputDestination) Option { return func(s *Simulator) { s.output = o } }

func WithMetrics(m metrics.Sink) Option { return func(s *Simulator) { s.metrics = m } }

func WithLogger(l logger.Logger) Option { return func(s *Simulator) { s.log = l } }

// WithDestinations replaces the seeded random destination source.
func WithDestinations(d DestinationSource) Option {
	return func(s *Simulator) { s.destinations = d }
}

// NewSimulator builds the road network, signals, planner and session for config.
func NewSimulator(config *models.Config, sched scheduler.Scheduler, opts ...Option) (*Simulator, error) {
	if config == nil {
		return nil, errors.New("new simulator: config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new simulator: %w", err)
	}

	sim := &Simulator{
		Config:  config,
		Network: roadnet.Default(),
		Signals: traffic.NewController(traffic.DefaultPositions()),
		Orders:  NewOrderFactory(config.Seed, config.Menu),
		sched:   sched,
	}
	for _, opt := range opts {
		opt(sim)
	}
	sim.log = logger.OrNop(sim.log)
	if sim.output == nil {
		sim.output = NewMultiOutput()
	}
	if sim.destinations == nil {
		sim.destinations = NewFakerDestinations(config.Seed, sim.Network)
	}

	switch config.Planner {
	case "axis":
		sim.Planner = routing.AxisAligned{}
	default:
		planner := routing.NewTrafficAware(sim.Network, sim.Signals)
		planner.Penalty = config.TrafficPenalty
		if config.DetectionRadius > 0 {
			planner.Radius = config.DetectionRadius
		}
		sim.Planner = planner
	}

	radius := config.DetectionRadius
	if radius <= 0 {
		radius = traffic.DetectionRadius
	}
	session, err := NewSession(SessionConfig{
		Depot:         config.Depot,
		PrepTime:      config.PrepTime,
		DeliveryTime:  config.DeliveryTime,
		DispatchDelay: config.DispatchDelay,
		Penalty:       config.TrafficPenalty,
		Radius:        radius,
	}, SessionDeps{
		Scheduler:    sched,
		Planner:      sim.Planner,
		Signals:      sim.Signals,
		Destinations: sim.destinations,
		Orders:       sim.Orders,
		Logger:       sim.log,
	})
	if err != nil {
		return nil, fmt.Errorf("new simulator: %w", err)
	}
	sim.Session = session
	session.Subscribe(sim.handleEvent)
	sim.Signals.OnChange(func(signals []models.TrafficSignal) {
		sim.handleEvent(models.Event{
			Time: sched.Now(),
			Type: models.EventSignalsChanged,
			Data: models.SignalsChanged{Signals: signals},
		})
	})
	return sim, nil
}

// Subscribe registers fn for every session and signal event. Register before Start.
func (s *Simulator) Subscribe(fn func(models.Event)) {
	s.observers = append(s.observers, fn)
}

func (s *Simulator) handleEvent(ev models.Event) {
	for _, fn := range s.observers {
		fn(ev)
	}
	if s.metrics != nil {
		if err := s.metrics.RecordEvent(ev); err != nil {
			s.log.Warnf("record metrics for %s: %v", ev.Type, err)
		}
	}
	if !s.shouldPublish(ev) {
		return
	}
	msg, err := serializeEvent(ev)
	if err != nil {
		s.log.Errorf("Error serializing event: %v", err)
		return
	}
	if err := s.output.WriteMessage(msg.Topic, msg.Message); err != nil {
		s.log.Errorf("write %s: %v", msg.Topic, err)
	}
}

// shouldPublish samples animation frames; every other event is published.
func (s *Simulator) shouldPublish(ev models.Event) bool {
	vs, ok := ev.Data.(models.VehicleState)
	if !ok {
		return true
	}
	if vs.StatusText == models.StatusTextDelivered {
		return true
	}
	n := s.Config.StateSampleTicks
	return n > 0 && vs.Tick%n == 0
}

// Start arms the signal cycle and, when configured, the order generator. Call it on the
// scheduler's goroutine.
func (s *Simulator) Start() {
	s.log.Infof("simulation started: planner=%s prep=%s delivery=%s", s.Config.Planner, s.Config.PrepTime, s.Config.DeliveryTime)
	s.handleEvent(models.Event{
		Time: s.sched.Now(),
		Type: models.EventSignalsChanged,
		Data: models.SignalsChanged{Signals: s.Signals.Snapshot()},
	})
	s.signalTimer = s.Signals.Start(s.sched, s.Config.SignalPeriod)
	if s.Config.OrderInterval > 0 {
		s.orderTimer = scheduler.Every(s.sched, s.Config.OrderInterval, s.placeRandomOrder)
	}
}

func (s *Simulator) placeRandomOrder() {
	if s.Config.MaxOrders > 0 && s.ordersPlaced >= s.Config.MaxOrders {
		s.orderTimer.Stop()
		return
	}
	s.ordersPlaced++
	s.Session.PlaceOrder(s.Orders.RandomItem())
}

// PlaceOrder orders the named menu item. Call it on the scheduler's goroutine.
func (s *Simulator) PlaceOrder(item string) (models.Order, error) {
	menuItem, ok := s.Orders.Lookup(item)
	if !ok {
		return models.Order{}, fmt.Errorf("place order: unknown menu item %q", item)
	}
	s.ordersPlaced++
	return s.Session.PlaceOrder(menuItem), nil
}

func (s *Simulator) Menu() []models.MenuItem { return s.Orders.Menu() }

// Snapshot captures the current state. Call it on the scheduler's goroutine.
func (s *Simulator) Snapshot() Snapshot {
	snap := Snapshot{
		State:     s.Session.State(),
		Vehicle:   s.Session.Vehicle(),
		Signals:   s.Signals.Snapshot(),
		Roads:     s.Network.Segments(),
		Depot:     s.Config.Depot,
		Orders:    s.ordersPlaced,
		Timestamp: s.sched.Now().UnixMilli(),
	}
	if d, ok := s.Session.Active(); ok {
		snap.Delivery = &d
	}
	return snap
}

// Stop cancels every timer and closes the outputs.
func (s *Simulator) Stop() error {
	if s.signalTimer != nil {
		s.signalTimer.Stop()
	}
	if s.orderTimer != nil {
		s.orderTimer.Stop()
	}
	s.Session.Close()
	if err := s.output.Close(); err != nil {
		return fmt.Errorf("close outputs: %w", err)
	}
	s.log.Infof("simulation stopped after %d orders", s.ordersPlaced)
	return nil
}

// Run drives the simulation on loop until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, loop *scheduler.Loop) error {
	loop.Post(s.Start)
	err := loop.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return errors.Join(err, s.Stop())
}
