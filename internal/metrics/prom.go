package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chrisdamba/deliverysim/internal/models"
)

// PromSink records delivery and signal activity in Prometheus metrics.
type PromSink struct {
	orders     prometheus.Counter
	deliveries *prometheus.CounterVec
	routeCost  prometheus.Histogram
	waypoints  prometheus.Histogram
	duration   prometheus.Histogram
	progress   prometheus.Gauge
	eta        prometheus.Gauge
	signals    prometheus.Counter
	redSignals prometheus.Gauge

	mu      sync.Mutex
	started map[string]time.Time
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{started: make(map[string]time.Time)}
	var err error

	if s.orders, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliverysim_orders_placed_total",
		Help: "Total number of orders placed",
	})); err != nil {
		return nil, err
	}
	if s.deliveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deliverysim_deliveries_total",
		Help: "Deliveries by lifecycle outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.routeCost, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deliverysim_route_cost",
		Help:    "Planned route cost including red signal penalties",
		Buckets: prometheus.LinearBuckets(0, 30, 10),
	})); err != nil {
		return nil, err
	}
	if s.waypoints, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deliverysim_route_waypoints",
		Help:    "Number of waypoints in planned routes",
		Buckets: prometheus.LinearBuckets(1, 1, 8),
	})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deliverysim_delivery_duration_seconds",
		Help:    "Time from dispatch to arrival",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.progress, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deliverysim_vehicle_progress_ratio",
		Help: "Progress of the active delivery between 0 and 1",
	})); err != nil {
		return nil, err
	}
	if s.eta, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deliverysim_vehicle_eta_minutes",
		Help: "Estimated minutes until the active delivery arrives",
	})); err != nil {
		return nil, err
	}
	if s.signals, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliverysim_signal_cycles_total",
		Help: "Number of traffic signal toggles",
	})); err != nil {
		return nil, err
	}
	if s.redSignals, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deliverysim_signals_red",
		Help: "Number of signals currently red",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// register reuses an already registered collector of the same shape.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func (s *PromSink) RecordEvent(ev models.Event) error {
	switch data := ev.Data.(type) {
	case models.OrderPlaced:
		s.orders.Inc()
	case models.DeliveryStarted:
		s.deliveries.WithLabelValues("started").Inc()
		s.routeCost.Observe(data.Cost)
		s.waypoints.Observe(float64(len(data.Path)))
		s.mu.Lock()
		s.started[data.DeliveryID] = ev.Time
		s.mu.Unlock()
	case models.DeliveryCompleted:
		s.deliveries.WithLabelValues("completed").Inc()
		s.mu.Lock()
		if at, ok := s.started[data.DeliveryID]; ok {
			s.duration.Observe(ev.Time.Sub(at).Seconds())
			delete(s.started, data.DeliveryID)
		}
		s.mu.Unlock()
		s.progress.Set(0)
		s.eta.Set(0)
	case models.DeliveryCancelled:
		s.deliveries.WithLabelValues("cancelled").Inc()
		s.mu.Lock()
		delete(s.started, data.DeliveryID)
		s.mu.Unlock()
	case models.VehicleState:
		s.progress.Set(data.Progress)
		s.eta.Set(float64(data.EtaMinutes))
	case models.SignalsChanged:
		s.signals.Inc()
		red := 0
		for _, sig := range data.Signals {
			if sig.State == models.SignalRed {
				red++
			}
		}
		s.redSignals.Set(float64(red))
	}
	return nil
}
