package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"camserver/internal/logger"
	"camserver/internal/metrics"
)

const (
	broadcastBuffer = 16
	writeWait       = 5 * time.Second
)

// HubService fans out frames and motion messages to connected viewers.
// Only the Run goroutine touches client connections after registration.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	count      chan chan int
	done       chan struct{}
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewHubService(logger *logger.Logger, metrics *metrics.Metrics) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client. Run must be called at most once.
func (h *HubService) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			client.Close()
			delete(h.clients, client)
		}
		h.metrics.SetViewers(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.metrics.SetViewers(len(h.clients))
			h.logger.Info("Viewer connected. Total: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				h.metrics.SetViewers(len(h.clients))
				h.logger.Info("Viewer disconnected. Total: %d", len(h.clients))
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case message := <-h.broadcast:
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warning("Error sending message to viewer: %v", err)
					delete(h.clients, client)
					client.Close()
					h.metrics.SetViewers(len(h.clients))
				}
			}
		}
	}
}

// Register adds a viewer. It returns false if the hub has stopped.
func (h *HubService) Register(ctx context.Context, client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Unregister removes a viewer and closes its connection.
func (h *HubService) Unregister(ctx context.Context, client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	case <-ctx.Done():
		client.Close()
	}
}

// Broadcast queues message for every viewer. When viewers are slower than
// the capture loop the message is dropped instead of blocking the caller.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.logger.Debug("Viewer broadcast queue full, dropping message")
		return false
	}
}

// ClientCount returns the number of connected viewers.
func (h *HubService) ClientCount(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	case <-ctx.Done():
		return 0
	}
}
