package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/chrisdamba/deliverysim/internal/logger"
	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/simulator"
)

// Backend is the simulation the server controls. Its methods are only called through Runner.
type Backend interface {
	Snapshot() simulator.Snapshot
	PlaceOrder(item string) (models.Order, error)
	Menu() []models.MenuItem
}

// Runner executes f on the goroutine that owns the simulation.
type Runner interface {
	Do(ctx context.Context, f func()) error
}

type Server struct {
	backend  Backend
	runner   Runner
	hub      *Hub
	gatherer prometheus.Gatherer
	log      logger.Logger
	srv      *http.Server
}

// NewServer wires the HTTP API. gatherer may be nil to disable /metrics.
func NewServer(addr string, backend Backend, runner Runner, hub *Hub, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	s := &Server{
		backend:  backend,
		runner:   runner,
		hub:      hub,
		gatherer: gatherer,
		log:      logger.OrNop(log),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	standard := alice.New(s.recoverPanic, s.logRequest)
	api := standard.Append(makeResponseJSON)

	mux := pat.New()
	mux.Get("/state", api.ThenFunc(s.state))
	mux.Get("/menu", api.ThenFunc(s.menu))
	mux.Post("/orders", api.ThenFunc(s.placeOrder))
	mux.Get("/ws", standard.ThenFunc(s.serveWS))
	if s.gatherer != nil {
		mux.Get("/metrics", standard.Then(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(mux)
}

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Infof("feed listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("feed server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	var snap simulator.Snapshot
	if err := s.runner.Do(r.Context(), func() { snap = s.backend.Snapshot() }); err != nil {
		s.unavailable(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) menu(w http.ResponseWriter, r *http.Request) {
	var items []models.MenuItem
	if err := s.runner.Do(r.Context(), func() { items = s.backend.Menu() }); err != nil {
		s.unavailable(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

type orderRequest struct {
	Item string `json:"item"`
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil || req.Item == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"item\": \"<menu item>\"}"})
		return
	}

	var (
		order    models.Order
		orderErr error
	)
	if err := s.runner.Do(r.Context(), func() { order, orderErr = s.backend.PlaceOrder(req.Item) }); err != nil {
		s.unavailable(w, err)
		return
	}
	if orderErr != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": orderErr.Error()})
		return
	}
	s.writeJSON(w, http.StatusAccepted, order)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	var snap simulator.Snapshot
	if err := s.runner.Do(r.Context(), func() { snap = s.backend.Snapshot() }); err != nil {
		s.unavailable(w, err)
		return
	}
	hello, err := json.Marshal(Message{Type: "Snapshot", Time: snap.Timestamp, Data: snap})
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	s.hub.ServeWS(w, r, hello)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnf("write response: %v", err)
	}
}

func (s *Server) unavailable(w http.ResponseWriter, err error) {
	s.log.Warnf("simulation unavailable: %v", err)
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "simulation is not running"})
}

func makeResponseJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debugf("%s - %s %s %s", r.RemoteAddr, r.Proto, r.Method, r.URL.RequestURI())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.log.Errorf("panic serving %s: %v", r.URL.Path, err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
