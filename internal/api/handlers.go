// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	gwebsocket "github.com/gorilla/websocket"

	"github.com/Gavinw575/plant-moisture-monitor/internal/auth"
	"github.com/Gavinw575/plant-moisture-monitor/internal/config"
	"github.com/Gavinw575/plant-moisture-monitor/internal/engine"
	"github.com/Gavinw575/plant-moisture-monitor/internal/source"
	"github.com/Gavinw575/plant-moisture-monitor/internal/storage"
	"github.com/Gavinw575/plant-moisture-monitor/internal/websocket"
)

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // local UI only
}

// Handler serves the configuration-change entry points and the status
// surface the presentation layer reads from. The sampling loop itself never
// goes through here.
type Handler struct {
	cfg     *config.Store
	store   *storage.MemoryStore
	src     source.ReadingSource
	tracker *engine.AlertTracker
	hub     *websocket.Hub
	auth    *auth.Manager
}

func NewHandler(cfg *config.Store, store *storage.MemoryStore, src source.ReadingSource, tracker *engine.AlertTracker, hub *websocket.Hub, authMgr *auth.Manager) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   store,
		src:     src,
		tracker: tracker,
		hub:     hub,
		auth:    authMgr,
	}
}

type sensorDTO struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	DryThreshold   float64 `json:"dry_threshold"`
	WetThreshold   float64 `json:"wet_threshold"`
	UpdateInterval int     `json:"update_interval"`
	ImagePath      string  `json:"image_path,omitempty"`
}

func toDTO(c config.SensorConfig) sensorDTO {
	return sensorDTO{
		ID:             c.ID,
		Name:           c.Name,
		DryThreshold:   c.DryThreshold,
		WetThreshold:   c.WetThreshold,
		UpdateInterval: c.PollIntervalSeconds,
		ImagePath:      c.ImagePath,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) sensorID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 || id >= h.cfg.Count() {
		writeError(w, http.StatusNotFound, "unknown sensor id")
		return 0, false
	}
	return id, true
}

// HandleStatus returns the latest classified update per sensor, the active
// alert set and source health.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":       h.src.Name(),
		"source_ready": h.src.Ready(),
		"sensors":      h.store.Latest(),
		"alerts":       h.tracker.Active(),
	})
}

// HandleRecent returns the most recent classified updates, oldest first.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	writeJSON(w, http.StatusOK, h.store.GetRecent(count))
}

// HandleListSensors returns every sensor's calibration.
func (h *Handler) HandleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors := h.cfg.Sensors()
	out := make([]sensorDTO, len(sensors))
	for i, s := range sensors {
		out[i] = toDTO(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleUpdateThresholds validates and stores new calibration thresholds.
func (h *Handler) HandleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sensorID(w, r)
	if !ok {
		return
	}
	var body struct {
		DryThreshold float64 `json:"dry_threshold"`
		WetThreshold float64 `json:"wet_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cannot parse JSON body")
		return
	}
	if err := h.cfg.UpdateThresholds(id, body.DryThreshold, body.WetThreshold); err != nil {
		if errors.Is(err, config.ErrInvalidThresholdRange) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	cfg, _ := h.cfg.Sensor(id)
	writeJSON(w, http.StatusOK, toDTO(cfg))
}

// HandleRename sets a sensor's display name.
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sensorID(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cannot parse JSON body")
		return
	}
	if err := h.cfg.Rename(id, body.Name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	cfg, _ := h.cfg.Sensor(id)
	writeJSON(w, http.StatusOK, toDTO(cfg))
}

// HandleSetImage stores the presentation layer's image path for a sensor.
func (h *Handler) HandleSetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sensorID(w, r)
	if !ok {
		return
	}
	var body struct {
		ImagePath string `json:"image_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cannot parse JSON body")
		return
	}
	if err := h.cfg.SetImagePath(id, body.ImagePath); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	cfg, _ := h.cfg.Sensor(id)
	writeJSON(w, http.StatusOK, toDTO(cfg))
}

// HandleCalibrate captures the sensor's current live voltage as its dry or
// wet threshold, keeping the other side and re-validating the pair before
// anything is persisted.
func (h *Handler) HandleCalibrate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sensorID(w, r)
	if !ok {
		return
	}
	var body struct {
		Point string `json:"point"` // "dry" or "wet"
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cannot parse JSON body")
		return
	}
	if body.Point != "dry" && body.Point != "wet" {
		writeError(w, http.StatusBadRequest, `point must be "dry" or "wet"`)
		return
	}

	reading, err := h.src.Read(id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "no live reading available: "+err.Error())
		return
	}
	captured := math.Round(reading.Voltage*100) / 100

	cfg, err := h.cfg.Sensor(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	dry, wet := cfg.DryThreshold, cfg.WetThreshold
	if body.Point == "dry" {
		dry = captured
	} else {
		wet = captured
	}

	if err := h.cfg.UpdateThresholds(id, dry, wet); err != nil {
		if errors.Is(err, config.ErrInvalidThresholdRange) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	cfg, _ = h.cfg.Sensor(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"captured_voltage": captured,
		"sensor":           toDTO(cfg),
	})
}

// HandleLogin exchanges username/password for a JWT.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cannot parse JSON body")
		return
	}
	if err := h.auth.AuthenticateUser(body.Username, body.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.auth.GenerateJWT(body.Username)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not generate token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// HandleWebSocket upgrades the connection and registers the client with the
// hub, sending recent history first so the UI can render immediately.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &websocket.Client{Hub: h.hub, Conn: conn, Send: make(chan []byte, 256)}
	h.hub.RegisterClient(client)

	go client.WritePump()
	go client.ReadPump()

	h.sendInitialHistory(client)
}

func (h *Handler) sendInitialHistory(client *websocket.Client) {
	recent := h.store.GetRecent(50)
	if len(recent) == 0 {
		return
	}
	messageBytes, err := json.Marshal(map[string]interface{}{
		"type":    "history",
		"payload": recent,
	})
	if err != nil {
		log.Printf("Error marshalling history payload: %v", err)
		return
	}
	select {
	case client.Send <- messageBytes:
	default:
		log.Println("Client send buffer full, skipping initial history")
	}
}
