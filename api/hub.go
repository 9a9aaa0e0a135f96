package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/LdDl/linecount-go/alerts"
)

const (
	writeWait       = 5 * time.Second
	defaultPongWait = 60 * time.Second
	broadcastQueue  = 64
)

// HubOption customizes Hub
type HubOption func(*Hub)

// WithPongWait sets how long a client may stay silent before it is dropped.
// Pings are sent every 9/10 of this period.
func WithPongWait(wait time.Duration) HubOption {
	return func(h *Hub) {
		if wait > 0 {
			h.pongWait = wait
		}
	}
}

// Hub fans out events to connected websocket clients
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	pongWait   time.Duration
	logger     zerolog.Logger
}

// NewHub creates hub. Call Run to start delivering.
func NewHub(logger zerolog.Logger, options ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		pongWait:   defaultPongWait,
		logger:     logger,
	}
	for _, option := range options {
		option(h)
	}
	return h
}

func (h *Hub) pingPeriod() time.Duration {
	return h.pongWait * 9 / 10
}

// Run serves registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info().Int("total", total).Msg("Websocket client connected")
		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info().Int("total", total).Msg("Websocket client disconnected")
		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warn().Err(err).Msg("Can't send websocket message")
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds client. After Run returns client is closed immediately.
func (h *Hub) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes client
func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

// ClientCount returns number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Notify queues event for broadcast. Never blocks the caller: if queue is full the event is dropped.
func (h *Hub) Notify(event alerts.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "Can't marshal event")
	}
	select {
	case h.broadcast <- payload:
		return nil
	default:
		return errors.Errorf("websocket broadcast queue is full, dropped event %s", event.ID)
	}
}
