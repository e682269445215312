// internal/source/simulated.go
package source

import (
	"math/rand"
	"sync"
)

// Simulated produces slowly drifting voltages per sensor, for development
// machines without the converter attached and as the filler policy for
// network sensors that have not reported yet.
type Simulated struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last map[int]float64
}

// NewSimulated seeds the generator. A fixed seed gives repeatable runs in
// tests; pass something time-derived in production wiring.
func NewSimulated(seed int64) *Simulated {
	return &Simulated{
		rng:  rand.New(rand.NewSource(seed)),
		last: make(map[int]float64),
	}
}

func (s *Simulated) Ready() bool { return true }

func (s *Simulated) Name() string { return "simulated" }

// Read walks each sensor's voltage by at most ±0.15 V per call, keeping it
// inside [0, MaxVoltage].
func (s *Simulated) Read(sensorID int) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.last[sensorID]
	if !ok {
		// Start somewhere in the plausible middle band.
		v = 1.0 + s.rng.Float64()*1.5
	}
	v += (s.rng.Float64() - 0.5) * 0.3
	if v < 0 {
		v = 0
	}
	if v > MaxVoltage {
		v = MaxVoltage
	}
	s.last[sensorID] = v

	return Reading{SensorID: sensorID, RawCode: voltageToRaw(v), Voltage: v}, nil
}
