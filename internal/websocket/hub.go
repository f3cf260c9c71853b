package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"

	"go-pharmacy-catalog/internal/event"
)

// Hub fans catalog events out to connected browsers. Only product events are
// broadcast; account events stay server side.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	bus        event.Bus
	done       chan struct{}
	connected  atomic.Int64
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		bus:        bus,
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.connected.Add(1)
			slog.Debug("catalog feed client connected", "clients", len(h.clients))
		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if !isBroadcast(e) {
				continue
			}

			message, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "type", e.Type, "error", err)
				continue
			}

			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slog.Warn("catalog feed client too slow, disconnecting")
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Clients reports the number of registered connections.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.connected.Add(-1)
}

func isBroadcast(e event.Event) bool {
	return strings.HasPrefix(string(e.Type), "product.")
}
