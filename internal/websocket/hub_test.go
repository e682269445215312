// internal/websocket/hub_test.go
package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/Gavinw575/plant-moisture-monitor/internal/engine"
	"github.com/Gavinw575/plant-moisture-monitor/internal/source"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Time    string          `json:"time"`
}

func nextFrame(t *testing.T, h *Hub) frame {
	t.Helper()
	select {
	case msg := <-h.broadcast:
		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			t.Fatalf("broadcast frame is not JSON: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame queued for broadcast")
		return frame{}
	}
}

func TestSinkEventFrames(t *testing.T) {
	h := NewHub()

	h.OnReading(2, source.Reading{SensorID: 2, RawCode: 512, Voltage: 1.2}, engine.Classify(1.2, 1.5, 2.5))
	f := nextFrame(t, h)
	if f.Type != "reading" {
		t.Errorf("type = %q, want reading", f.Type)
	}
	var reading struct {
		SensorID int     `json:"sensor_id"`
		Voltage  float64 `json:"voltage"`
	}
	if err := json.Unmarshal(f.Payload, &reading); err != nil {
		t.Fatal(err)
	}
	if reading.SensorID != 2 || reading.Voltage != 1.2 {
		t.Errorf("reading payload = %+v", reading)
	}

	h.OnAlertChanged(1, true)
	f = nextFrame(t, h)
	if f.Type != "alert" {
		t.Errorf("type = %q, want alert", f.Type)
	}
	var alert struct {
		SensorID int  `json:"sensor_id"`
		Added    bool `json:"added"`
	}
	if err := json.Unmarshal(f.Payload, &alert); err != nil {
		t.Fatal(err)
	}
	if alert.SensorID != 1 || !alert.Added {
		t.Errorf("alert payload = %+v", alert)
	}

	h.OnHardwareError()
	if f = nextFrame(t, h); f.Type != "hardware_error" {
		t.Errorf("type = %q, want hardware_error", f.Type)
	}
}

func TestHubDeliversToRegisteredClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	upgrader := gws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 16)}
		hub.RegisterClient(client)
		go client.WritePump()
		client.ReadPump()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration happens on the server's handler goroutine after the
	// handshake; wait for the hub to pick the client up before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.OnAlertChanged(0, true)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if f.Type != "alert" {
		t.Errorf("type = %q, want alert", f.Type)
	}
}
