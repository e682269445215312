// internal/websocket/hub.go
package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/Gavinw575/plant-moisture-monitor/internal/engine"
	"github.com/Gavinw575/plant-moisture-monitor/internal/source"
)

// Hub maintains the set of active presentation clients and broadcasts
// engine events to them. It implements engine.UpdateSink; the engine's
// dispatcher guarantees the sink methods are never called concurrently.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			log.Printf("WebSocket client registered: %s", client.Conn.RemoteAddr())
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("WebSocket client unregistered: %s", client.Conn.RemoteAddr())
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Client is blocked or gone, drop it.
					log.Printf("WebSocket client %s send buffer full, removing", client.Conn.RemoteAddr())
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// RegisterClient safely registers a new client with the hub.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) send(msgType string, payload interface{}) {
	messageBytes, err := json.Marshal(map[string]interface{}{
		"type":    msgType,
		"payload": payload,
		"time":    time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("Error marshalling %s message for broadcast: %v", msgType, err)
		return
	}
	select {
	case h.broadcast <- messageBytes:
	default:
		log.Printf("Broadcast buffer full, dropping %s message", msgType)
	}
}

// OnReading implements engine.UpdateSink.
func (h *Hub) OnReading(sensorID int, r source.Reading, c engine.Classification) {
	h.send("reading", map[string]interface{}{
		"sensor_id":      sensorID,
		"raw_code":       r.RawCode,
		"voltage":        r.Voltage,
		"classification": c,
	})
}

// OnAlertChanged implements engine.UpdateSink.
func (h *Hub) OnAlertChanged(sensorID int, added bool) {
	h.send("alert", map[string]interface{}{
		"sensor_id": sensorID,
		"added":     added,
	})
}

// OnHardwareError implements engine.UpdateSink.
func (h *Hub) OnHardwareError() {
	h.send("hardware_error", nil)
}
