// internal/source/network.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// acceptTimeout bounds how long Accept blocks so the listener can
	// observe shutdown promptly.
	acceptTimeout = 2 * time.Second

	// maxIngestBytes bounds one connection's payload.
	maxIngestBytes = 64 * 1024

	sensorKeyPrefix = "plant_"
)

// FillerPolicy selects what Read returns for a sensor id that has never
// been reported by any remote node.
type FillerPolicy string

const (
	// FillerUnavailable surfaces ErrNoData so the engine shows an explicit
	// error state for that sensor.
	FillerUnavailable FillerPolicy = "unavailable"

	// FillerSimulated substitutes a simulated voltage.
	FillerSimulated FillerPolicy = "simulated"
)

// NetworkIngest accepts batched voltage reports from remote sensor nodes.
// Each connection carries exactly one JSON object, keys "plant_<i>", float
// values in [0, MaxVoltage]; the sender closes after writing and gets no
// acknowledgement. Valid values overwrite the last-known voltage for that
// sensor, last write wins.
type NetworkIngest struct {
	count  int
	filler FillerPolicy
	sim    *Simulated

	listener net.Listener // nil when the bind failed

	mu     sync.RWMutex
	latest map[int]float64
}

// NewNetworkIngest binds the TCP listener. A bind failure does not abort:
// the variant degrades to permanently unavailable and the engine reports a
// hardware-error state instead.
func NewNetworkIngest(port, sensorCount int, filler FillerPolicy, sim *Simulated) *NetworkIngest {
	n := &NetworkIngest{
		count:  sensorCount,
		filler: filler,
		sim:    sim,
		latest: make(map[int]float64),
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.Printf("Ingest listener bind failed on port %d: %v", port, err)
		return n
	}
	n.listener = ln
	return n
}

func (n *NetworkIngest) Ready() bool { return n.listener != nil }

// Addr returns the bound listener address, or nil when the bind failed.
func (n *NetworkIngest) Addr() net.Addr {
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

func (n *NetworkIngest) Name() string { return "network-ingest" }

// Read returns the last-known voltage for the sensor, or applies the filler
// policy when no node has reported it yet.
func (n *NetworkIngest) Read(sensorID int) (Reading, error) {
	if n.listener == nil {
		return Reading{}, ErrUnavailable
	}
	if sensorID < 0 || sensorID >= n.count {
		return Reading{}, fmt.Errorf("sensor id %d out of range [0,%d)", sensorID, n.count)
	}

	n.mu.RLock()
	v, ok := n.latest[sensorID]
	n.mu.RUnlock()

	if !ok {
		if n.filler == FillerSimulated && n.sim != nil {
			r, err := n.sim.Read(sensorID)
			if err != nil {
				return Reading{}, err
			}
			r.SensorID = sensorID
			return r, nil
		}
		return Reading{}, ErrNoData
	}
	return Reading{SensorID: sensorID, RawCode: voltageToRaw(v), Voltage: v}, nil
}

// Run accepts connections until the context is cancelled. Accept is
// deadline-bounded so cancellation is observed within acceptTimeout.
func (n *NetworkIngest) Run(ctx context.Context) {
	if n.listener == nil {
		return
	}
	defer n.listener.Close()

	log.Printf("Ingest listener accepting on %s", n.listener.Addr())
	for {
		select {
		case <-ctx.Done():
			log.Println("Ingest listener shutting down")
			return
		default:
		}

		if d, ok := n.listener.(interface{ SetDeadline(time.Time) error }); ok {
			d.SetDeadline(time.Now().Add(acceptTimeout))
		}
		conn, err := n.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Printf("Ingest accept error: %v", err)
			continue
		}
		n.handleConn(conn)
	}
}

// handleConn reads one bounded JSON object and applies it. Connections are
// short-lived; handling inline keeps the last-write-wins ordering equal to
// arrival order.
func (n *NetworkIngest) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.New().String()[:8]
	conn.SetReadDeadline(time.Now().Add(acceptTimeout))

	body, err := io.ReadAll(io.LimitReader(conn, maxIngestBytes))
	if err != nil {
		log.Printf("Ingest [%s] read error from %s: %v", connID, conn.RemoteAddr(), err)
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("Ingest [%s] malformed JSON from %s: %v", connID, conn.RemoteAddr(), err)
		return
	}
	n.apply(connID, payload)
}

// apply validates each reported key/value and stores the valid ones.
// Invalid entries are dropped individually so one bad value does not poison
// the rest of the batch.
func (n *NetworkIngest) apply(connID string, payload map[string]interface{}) {
	for key, value := range payload {
		id, ok := parseSensorKey(key)
		if !ok || id < 0 || id >= n.count {
			log.Printf("Ingest [%s] dropping unknown sensor key %q", connID, key)
			continue
		}
		v, ok := value.(float64)
		if !ok {
			log.Printf("Ingest [%s] dropping non-numeric value for %q (%T)", connID, key, value)
			continue
		}
		if v < 0 || v > MaxVoltage {
			log.Printf("Ingest [%s] dropping out-of-range voltage %.3f for %q", connID, v, key)
			continue
		}

		n.mu.Lock()
		n.latest[id] = v
		n.mu.Unlock()
	}
}

func parseSensorKey(key string) (int, bool) {
	if !strings.HasPrefix(key, sensorKeyPrefix) {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(key, sensorKeyPrefix))
	if err != nil {
		return 0, false
	}
	return id, true
}
