package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/simulator"
)

type fakeBackend struct {
	snap   simulator.Snapshot
	orders []string
}

func (f *fakeBackend) Snapshot() simulator.Snapshot { return f.snap }

func (f *fakeBackend) PlaceOrder(item string) (models.Order, error) {
	if item != "Margherita" {
		return models.Order{}, fmt.Errorf("place order: unknown menu item %q", item)
	}
	f.orders = append(f.orders, item)
	return models.Order{ID: "o1", Item: item, Status: models.OrderStatusPreparing}, nil
}

func (f *fakeBackend) Menu() []models.MenuItem { return models.DefaultMenu }

type directRunner struct{}

func (directRunner) Do(_ context.Context, f func()) error {
	f()
	return nil
}

type stoppedRunner struct{}

func (stoppedRunner) Do(context.Context, func()) error { return context.Canceled }

func newTestServer(runner Runner, gatherer prometheus.Gatherer) (*Server, *fakeBackend) {
	backend := &fakeBackend{snap: simulator.Snapshot{
		State:   models.SessionIdle,
		Vehicle: models.Vehicle{ID: "vehicle-1", Position: models.Point{X: 20, Y: 20}, Status: models.VehicleStatusIdle},
		Depot:   models.Point{X: 20, Y: 20},
	}}
	return NewServer(":0", backend, runner, NewHub(nil), gatherer, nil), backend
}

func TestStateEndpoint(t *testing.T) {
	srv, _ := newTestServer(directRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var snap simulator.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, models.SessionIdle, snap.State)
	assert.Equal(t, "vehicle-1", snap.Vehicle.ID)
}

func TestStateEndpointWhenStopped(t *testing.T) {
	srv, _ := newTestServer(stoppedRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMenuEndpoint(t *testing.T) {
	srv, _ := newTestServer(directRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/menu", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.MenuItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, len(models.DefaultMenu))
}

func TestPlaceOrderEndpoint(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "accepted", body: `{"item":"Margherita"}`, code: http.StatusAccepted},
		{name: "unknown item", body: `{"item":"Calzone"}`, code: http.StatusUnprocessableEntity},
		{name: "missing item", body: `{}`, code: http.StatusBadRequest},
		{name: "malformed", body: `{"item":`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, backend := newTestServer(directRunner{}, nil)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tt.body))
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusAccepted {
				var order models.Order
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
				assert.Equal(t, "o1", order.ID)
				assert.Equal(t, []string{"Margherita"}, backend.orders)
			} else {
				assert.Empty(t, backend.orders)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "deliverysim_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv, _ := newTestServer(directRunner{}, reg)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "deliverysim_test_total 1")
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	srv, _ := newTestServer(directRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(directRunner{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverPanic(t *testing.T) {
	srv, _ := newTestServer(directRunner{}, nil)
	h := srv.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketStreamsEvents(t *testing.T) {
	srv, _ := newTestServer(directRunner{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	hello := readMessage(t, conn)
	assert.Equal(t, "Snapshot", hello.Type)
	assert.Equal(t, 1, srv.hub.Clients())

	srv.hub.HandleEvent(models.Event{
		Time: time.UnixMilli(1234),
		Type: models.EventVehicleState,
		Data: models.VehicleState{VehicleID: "vehicle-1", Position: models.Point{X: 35, Y: 20}, Progress: 0.25},
	})
	msg := readMessage(t, conn)
	assert.Equal(t, models.EventVehicleState, msg.Type)
	assert.Equal(t, int64(1234), msg.Time)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0.25, data["progress"])
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	srv, _ := newTestServer(directRunner{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	readMessage(t, conn)

	srv.hub.Close()
	assert.Equal(t, 0, srv.hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}

func TestBroadcastDropsForSlowClients(t *testing.T) {
	h := NewHub(nil)
	c := &client{send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}

	h.Broadcast([]byte("a"))
	h.Broadcast([]byte("b"))
	assert.Equal(t, 1, h.Dropped())
	assert.Equal(t, []byte("a"), <-c.send)
}
