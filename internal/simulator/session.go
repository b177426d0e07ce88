package simulator

import (
	"errors"
	"time"

	"github.com/lucsky/cuid"

	"github.com/chrisdamba/deliverysim/internal/animator"
	"github.com/chrisdamba/deliverysim/internal/logger"
	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/routing"
	"github.com/chrisdamba/deliverysim/internal/scheduler"
)

var sessionTransitions = map[models.SessionState]map[models.SessionState]struct{}{
	models.SessionIdle:      {models.SessionPlanning: {}},
	models.SessionPlanning:  {models.SessionAnimating: {}, models.SessionDelivered: {}},
	models.SessionAnimating: {models.SessionDelivered: {}, models.SessionPlanning: {}},
	models.SessionDelivered: {models.SessionIdle: {}, models.SessionPlanning: {}},
}

// canTransition reports whether the session may move from one state to another.
func canTransition(from, to models.SessionState) bool {
	if from == to {
		return true
	}
	_, ok := sessionTransitions[from][to]
	return ok
}

// orderHistory bounds how many delivered or cancelled orders stay queryable.
const orderHistory = 64

type SessionConfig struct {
	Depot         models.Point
	PrepTime      time.Duration
	DeliveryTime  time.Duration
	DispatchDelay time.Duration
	Penalty       float64
	Radius        float64
}

// SessionDeps are the collaborators a Session drives. All are required.
type SessionDeps struct {
	Scheduler    scheduler.Scheduler
	Planner      routing.Planner
	Signals      routing.SignalReader
	Destinations DestinationSource
	Orders       *OrderFactory
	Logger       logger.Logger
}

type subscriber struct {
	id int
	fn func(models.Event)
}

// Session runs the single delivery vehicle. Every method must be called from the goroutine that
// runs the scheduler's callbacks.
type Session struct {
	cfg          SessionConfig
	sched        scheduler.Scheduler
	planner      routing.Planner
	signals      routing.SignalReader
	destinations DestinationSource
	orders       *OrderFactory
	log          logger.Logger

	vehicle  *models.Vehicle
	animator *animator.Animator

	state      models.SessionState
	active     *models.Delivery
	dispatch   scheduler.Timer
	placed     map[string]*models.Order
	history    []*models.Order
	prepTimers map[string]scheduler.Timer

	subscribers []subscriber
	nextSubID   int
}

func NewSession(cfg SessionConfig, deps SessionDeps) (*Session, error) {
	switch {
	case deps.Scheduler == nil:
		return nil, errors.New("new session: scheduler is required")
	case deps.Planner == nil:
		return nil, errors.New("new session: planner is required")
	case deps.Signals == nil:
		return nil, errors.New("new session: signal reader is required")
	case deps.Destinations == nil:
		return nil, errors.New("new session: destination source is required")
	case deps.Orders == nil:
		return nil, errors.New("new session: order factory is required")
	}

	s := &Session{
		cfg:          cfg,
		sched:        deps.Scheduler,
		planner:      deps.Planner,
		signals:      deps.Signals,
		destinations: deps.Destinations,
		orders:       deps.Orders,
		log:          logger.OrNop(deps.Logger),
		vehicle: &models.Vehicle{
			ID:       "vehicle-1",
			Position: cfg.Depot,
			Status:   models.VehicleStatusIdle,
		},
		state:      models.SessionIdle,
		placed:     make(map[string]*models.Order),
		prepTimers: make(map[string]scheduler.Timer),
	}
	s.animator = animator.New(deps.Scheduler, s.vehicle, s.onFrame)
	return s, nil
}

// Subscribe registers fn for every event the session raises. Call the returned func to stop.
func (s *Session) Subscribe(fn func(models.Event)) func() {
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) emit(eventType string, data interface{}) {
	ev := models.Event{Time: s.sched.Now(), Type: eventType, Data: data}
	for _, sub := range append([]subscriber(nil), s.subscribers...) {
		sub.fn(ev)
	}
}

func (s *Session) setState(to models.SessionState) {
	if !canTransition(s.state, to) {
		s.log.Errorf("invalid session transition %s -> %s", s.state, to)
	}
	s.log.Debugf("session %s -> %s", s.state, to)
	s.state = to
}

func (s *Session) State() models.SessionState { return s.state }

// Vehicle returns a copy of the vehicle's current state.
func (s *Session) Vehicle() models.Vehicle { return *s.vehicle }

// Active returns a copy of the in-flight delivery, if any.
func (s *Session) Active() (models.Delivery, bool) {
	if s.active == nil {
		return models.Delivery{}, false
	}
	d := *s.active
	d.Path = append([]models.Point(nil), s.active.Path...)
	return d, true
}

// Order looks up an open order or one of the last orderHistory finished ones.
func (s *Session) Order(id string) (models.Order, bool) {
	if o, ok := s.placed[id]; ok {
		return *o, true
	}
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ID == id {
			return *s.history[i], true
		}
	}
	return models.Order{}, false
}

// PlaceOrder creates an order for item bound for a random point on the network. It becomes
// ready for delivery after the configured preparation time.
func (s *Session) PlaceOrder(item models.MenuItem) models.Order {
	now := s.sched.Now()
	order := s.orders.CreateOrder(item, s.destinations.Next(), now)
	s.placed[order.ID] = order
	s.log.Infof("order %s placed: %s to %s", order.ID, order.Item, order.Destination)

	s.emit(models.EventOrderPlaced, models.OrderPlaced{
		OrderID:     order.ID,
		Item:        order.Item,
		Price:       order.Price,
		Destination: order.Destination,
	})

	s.prepTimers[order.ID] = s.sched.AfterFunc(s.cfg.PrepTime, func() {
		delete(s.prepTimers, order.ID)
		order.Status = models.OrderStatusReadyForDelivery
		order.ReadyAt = s.sched.Now()
		s.OrderReady(models.OrderReadyForDelivery{
			OrderID:     order.ID,
			Item:        order.Item,
			Price:       order.Price,
			Destination: order.Destination,
		})
	})
	return *order
}

// OrderReady starts a delivery for ev, cancelling whatever delivery is in flight.
func (s *Session) OrderReady(ev models.OrderReadyForDelivery) {
	s.emit(models.EventOrderReady, ev)
	s.cancelActive()
	s.setState(models.SessionPlanning)

	delivery := &models.Delivery{
		ID:          cuid.New(),
		OrderID:     ev.OrderID,
		Item:        ev.Item,
		Origin:      s.cfg.Depot,
		Destination: ev.Destination,
		Status:      models.DeliveryStatusPlanning,
		StartedAt:   s.sched.Now(),
	}
	delivery.Path = s.planner.Plan(delivery.Origin, delivery.Destination)
	delivery.Cost = routing.PathCost(delivery.Path, s.signals.Snapshot(), s.cfg.Penalty, s.cfg.Radius)
	s.active = delivery
	if order, ok := s.placed[ev.OrderID]; ok {
		order.Status = models.OrderStatusDelivering
	}

	s.log.Infof("delivery %s for order %s planned: %d waypoints, cost %.1f",
		delivery.ID, delivery.OrderID, len(delivery.Path), delivery.Cost)
	s.emit(models.EventDeliveryStarted, models.DeliveryStarted{
		OrderID:    delivery.OrderID,
		DeliveryID: delivery.ID,
		Path:       append([]models.Point(nil), delivery.Path...),
		Cost:       delivery.Cost,
	})

	if len(delivery.Path) < 2 {
		s.complete(delivery)
		return
	}

	if s.cfg.DispatchDelay <= 0 {
		s.dispatchDelivery(delivery)
		return
	}
	s.dispatch = s.sched.AfterFunc(s.cfg.DispatchDelay, func() {
		s.dispatch = nil
		s.dispatchDelivery(delivery)
	})
}

func (s *Session) dispatchDelivery(d *models.Delivery) {
	if s.active != d {
		return
	}
	d.Status = models.DeliveryStatusAnimating
	s.setState(models.SessionAnimating)
	s.animator.Start(d.Path, s.cfg.DeliveryTime)
}

func (s *Session) onFrame(f animator.Frame) {
	d := s.active
	if d == nil || d.Status != models.DeliveryStatusAnimating {
		return
	}
	s.emit(models.EventVehicleState, f.VehicleState(*s.vehicle))
	if f.Delivered {
		s.complete(d)
	}
}

// complete settles the vehicle at the depot before announcing the delivery, so a subscriber
// may start the next one from the completed event.
func (s *Session) complete(d *models.Delivery) {
	d.Status = models.DeliveryStatusDelivered
	d.CompletedAt = s.sched.Now()
	if order, ok := s.placed[d.OrderID]; ok {
		order.Status = models.OrderStatusDelivered
		order.DeliveredAt = d.CompletedAt
		s.finish(order)
	}
	s.active = nil
	s.setState(models.SessionDelivered)
	s.animator.Park(s.cfg.Depot)
	s.setState(models.SessionIdle)

	s.log.Infof("delivery %s for order %s delivered", d.ID, d.OrderID)
	s.emit(models.EventDeliveryCompleted, models.DeliveryCompleted{OrderID: d.OrderID, DeliveryID: d.ID})
}

// finish moves order out of the open set into the bounded history.
func (s *Session) finish(order *models.Order) {
	delete(s.placed, order.ID)
	s.history = append(s.history, order)
	if len(s.history) > orderHistory {
		s.history[0] = nil
		s.history = s.history[1:]
	}
}

// cancelActive stops every timer of the in-flight delivery before anything new is armed.
func (s *Session) cancelActive() {
	if s.dispatch != nil {
		s.dispatch.Stop()
		s.dispatch = nil
	}
	s.animator.Stop()

	d := s.active
	if d == nil {
		return
	}
	s.active = nil
	d.Status = models.DeliveryStatusCancelled
	if order, ok := s.placed[d.OrderID]; ok {
		order.Status = models.OrderStatusCancelled
		s.finish(order)
	}
	s.log.Warnf("delivery %s for order %s superseded", d.ID, d.OrderID)
	s.emit(models.EventDeliveryCancelled, models.DeliveryCancelled{OrderID: d.OrderID, DeliveryID: d.ID})
}

// Close cancels every pending timer. The session emits nothing afterwards.
func (s *Session) Close() {
	for id, t := range s.prepTimers {
		t.Stop()
		delete(s.prepTimers, id)
	}
	if s.dispatch != nil {
		s.dispatch.Stop()
		s.dispatch = nil
	}
	s.animator.Stop()
	s.subscribers = nil
}
