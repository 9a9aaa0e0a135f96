package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/linecount-go/alerts"
	"github.com/LdDl/linecount-go/crossing"
	"github.com/LdDl/linecount-go/mot"
)

type fakeSource struct {
	counts crossing.CountsSnapshot
	tracks []mot.TrackSnapshot
	alerts []alerts.Event
}

func (f *fakeSource) Counts() crossing.CountsSnapshot { return f.counts }
func (f *fakeSource) Tracks() []mot.TrackSnapshot     { return f.tracks }
func (f *fakeSource) AlertStats() alerts.Stats        { return alerts.Stats{EntriesInWindow: 2} }
func (f *fakeSource) Frame() int64                    { return 42 }
func (f *fakeSource) Line() crossing.Line             { return crossing.DefaultLine() }

func (f *fakeSource) RecentAlerts(n int) []alerts.Event {
	if n > len(f.alerts) {
		n = len(f.alerts)
	}
	return f.alerts[len(f.alerts)-n:]
}

func newTestSource() *fakeSource {
	session := uuid.New()
	events := make([]alerts.Event, 0, 4)
	for i := 0; i < 4; i++ {
		events = append(events, alerts.Event{
			ID:        uuid.New(),
			Session:   session,
			Timestamp: time.Date(2024, 3, 1, 12, 0, i, 0, time.UTC),
			Kind:      alerts.KindOccupancyAlert,
			Message:   "OCCUPANCY ALERT",
			Count:     51 + i,
		})
	}
	return &fakeSource{
		counts: crossing.CountsSnapshot{Entered: 5, Exited: 3, Occupancy: 2},
		tracks: []mot.TrackSnapshot{
			{ID: 1, Centroid: mot.NewPoint(10, 250), Side: mot.SideAbove},
			{ID: 2, Centroid: mot.NewPoint(50, 400), Side: mot.SideBelow},
		},
		alerts: events,
	}
}

func doGet(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	server := NewServer(":0", newTestSource(), nil, zerolog.Nop())
	rec := doGet(t, server.Handler(), "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, HealthResponse{Status: "healthy", Frame: 42}, body)
}

func TestHealthReportsConnections(t *testing.T) {
	connected := true
	server := NewServer(":0", newTestSource(), nil, zerolog.Nop(),
		WithConnectionCheck("nats", func() bool { return connected }),
	)

	rec := doGet(t, server.Handler(), "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, map[string]string{"nats": "connected"}, body.Connections)

	connected = false
	rec = doGet(t, server.Handler(), "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body = HealthResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"nats": "disconnected"}, body.Connections)
}

func TestCounts(t *testing.T) {
	server := NewServer(":0", newTestSource(), nil, zerolog.Nop())
	rec := doGet(t, server.Handler(), "/api/v1/counts")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["entered"])
	assert.Equal(t, float64(3), body["exited"])
	assert.Equal(t, float64(2), body["occupancy"])
	assert.Equal(t, "horizontal", body["orientation"])
	assert.Equal(t, float64(300), body["position"])
}

func TestTracks(t *testing.T) {
	server := NewServer(":0", newTestSource(), nil, zerolog.Nop())
	rec := doGet(t, server.Handler(), "/api/v1/tracks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"side":"above"`)
	assert.Contains(t, rec.Body.String(), `"side":"below"`)
	var body TracksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Tracks, 2)
}

func TestRecentAlerts(t *testing.T) {
	server := NewServer(":0", newTestSource(), nil, zerolog.Nop())

	rec := doGet(t, server.Handler(), "/api/v1/alerts/recent")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []alerts.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 3)
	assert.Equal(t, 54, events[2].Count)

	rec = doGet(t, server.Handler(), "/api/v1/alerts/recent?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 1)

	rec = doGet(t, server.Handler(), "/api/v1/alerts/recent?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertStats(t *testing.T) {
	server := NewServer(":0", newTestSource(), nil, zerolog.Nop())
	rec := doGet(t, server.Handler(), "/api/v1/alerts/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries_in_window":2`)
}

func TestEventsRouteDisabledWithoutHub(t *testing.T) {
	server := NewServer(":0", newTestSource(), nil, zerolog.Nop())
	rec := doGet(t, server.Handler(), "/api/v1/events")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsWebsocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	server := NewServer(":0", newTestSource(), hub, zerolog.Nop())
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	event := alerts.Event{
		ID:        uuid.New(),
		Session:   uuid.New(),
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:      alerts.KindEntry,
		Message:   "Entry detected",
	}
	require.NoError(t, hub.Notify(event))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received alerts.Event
	require.NoError(t, conn.ReadJSON(&received))
	assert.Equal(t, event.ID, received.ID)
	assert.Equal(t, alerts.KindEntry, received.Kind)
	assert.True(t, event.Timestamp.Equal(received.Timestamp))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventsWebsocketKeepsIdleClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pongWait := 250 * time.Millisecond
	hub := NewHub(zerolog.Nop(), WithPongWait(pongWait))
	go hub.Run(ctx)

	server := NewServer(":0", newTestSource(), hub, zerolog.Nop())
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Viewer never writes; reading lets default ping handler answer with pongs
	received := make(chan alerts.Event, 1)
	go func() {
		var event alerts.Event
		if err := conn.ReadJSON(&event); err == nil {
			received <- event
		}
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(4 * pongWait)
	require.Equal(t, 1, hub.ClientCount(), "idle client must survive several pong periods")

	event := alerts.Event{
		ID:        uuid.New(),
		Session:   uuid.New(),
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:      alerts.KindExit,
		Message:   "Exit detected",
	}
	require.NoError(t, hub.Notify(event))
	select {
	case got := <-received:
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("Idle client did not receive event")
	}
}

func TestHubNotifyNeverBlocks(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	// Hub is not running: queue fills up and further events are dropped with error
	var err error
	for i := 0; i < broadcastQueue+1; i++ {
		err = hub.Notify(alerts.Event{ID: uuid.New(), Kind: alerts.KindExit})
	}
	assert.Error(t, err)
}
