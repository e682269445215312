// internal/engine/alerts.go
package engine

import "sync"

// AlertTransition is the outcome of feeding one classification into the
// tracker.
type AlertTransition int

const (
	NoChange AlertTransition = iota
	Added
	Removed
)

// AlertTracker holds the set of sensor ids currently in the DRY state and
// reports transitions exactly once. Feeding the same alert state again is a
// NoChange, which is what keeps the presentation layer from being notified
// on every poll cycle.
type AlertTracker struct {
	mu       sync.Mutex
	alerting map[int]struct{}
}

func NewAlertTracker() *AlertTracker {
	return &AlertTracker{alerting: make(map[int]struct{})}
}

// Update records the sensor's current alert state and returns the
// transition, if any.
func (t *AlertTracker) Update(sensorID int, isAlert bool) AlertTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, present := t.alerting[sensorID]
	switch {
	case isAlert && !present:
		t.alerting[sensorID] = struct{}{}
		return Added
	case !isAlert && present:
		delete(t.alerting, sensorID)
		return Removed
	default:
		return NoChange
	}
}

// Active returns the sensor ids currently alerting.
func (t *AlertTracker) Active() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, 0, len(t.alerting))
	for id := range t.alerting {
		ids = append(ids, id)
	}
	return ids
}
