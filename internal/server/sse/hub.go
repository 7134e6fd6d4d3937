package sse

import (
	"encoding/json"

	"facewatch-go/internal/watcher"

	log "github.com/sirupsen/logrus"
)

// Client is a single connected SSE client.
type Client chan []byte

// Hub keeps the set of active clients and fans broadcasts out to them.
type Hub struct {
	// Registered clients
	clients map[Client]bool

	// Incoming messages from the application
	broadcast chan []byte

	// Registration requests from clients
	register chan Client

	// Deregistration requests from clients
	unregister chan Client
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 100), // buffer for 100 messages
		register:   make(chan Client),
		unregister: make(chan Client),
		clients:    make(map[Client]bool),
	}
}

// Run starts the hub's processing loop.
// This should run in its own goroutine.
func (h *Hub) Run() {
	log.Info("SSE hub started and running")

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Infof("SSE client registered. Total clients: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				log.Infof("SSE client unregistered. Total clients: %d", len(h.clients))
			}

		case message := <-h.broadcast:
			log.Debugf("Broadcasting message to %d SSE clients", len(h.clients))

			for client := range h.clients {
				select {
				case client <- message:
					// message queued for this client
				default:
					// client channel full or closed
					log.Warn("SSE client channel full or closed, removing client")
					delete(h.clients, client)
					close(client)
				}
			}
		}
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(client Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// Broadcast sends a message to all registered clients.
func (h *Hub) Broadcast(message []byte) {
	// Avoid blocking when the broadcast channel is full
	select {
	case h.broadcast <- message:
		// message queued for delivery
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// envelope is the wire shape of a hub message.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (h *Hub) send(kind string, data any) {
	msg, err := json.Marshal(envelope{Type: kind, Data: data})
	if err != nil {
		log.Errorf("Failed to marshal %s data for SSE: %v", kind, err)
		return
	}
	h.Broadcast(msg)
}

// Bridge adapts the hub into a watcher event sink so the dashboard
// sees state changes and detections as they happen.
type Bridge struct {
	hub *Hub
}

// NewBridge wraps a hub for use as a watcher sink.
func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

// StateChanged broadcasts the updated watcher state.
func (b *Bridge) StateChanged(s watcher.State) {
	b.hub.send("state", s)
}

// FacesDetected broadcasts a detection event.
func (b *Bridge) FacesDetected(e watcher.Event) {
	b.hub.send("detection", e)
}
