// internal/engine/monitor.go
package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Gavinw575/plant-moisture-monitor/internal/config"
	"github.com/Gavinw575/plant-moisture-monitor/internal/source"
)

// backoffInterval is slept after a whole-cycle failure (source down),
// deliberately longer than any normal poll interval.
const backoffInterval = 5 * time.Second

// Update is one classified sample as recorded for later retrieval.
type Update struct {
	SensorID       int            `json:"sensor_id"`
	Reading        source.Reading `json:"reading"`
	Classification Classification `json:"classification"`
	At             time.Time      `json:"at"`
}

// Recorder receives every classified update the loop produces.
type Recorder interface {
	Record(Update)
}

// Monitor is the background sampling loop. Each cycle it reads and
// classifies the primary (lowest-indexed) sensor; once per calendar day it
// sweeps every sensor. It owns the alert set and is the only producer of
// reading and alert events.
type Monitor struct {
	cfg      *config.Store
	src      source.ReadingSource
	dispatch *Dispatcher
	tracker  *AlertTracker
	recorder Recorder

	now func() time.Time
}

// NewMonitor wires the loop. recorder may be nil.
func NewMonitor(cfg *config.Store, src source.ReadingSource, dispatch *Dispatcher, tracker *AlertTracker, recorder Recorder) *Monitor {
	return &Monitor{
		cfg:      cfg,
		src:      src,
		dispatch: dispatch,
		tracker:  tracker,
		recorder: recorder,
		now:      time.Now,
	}
}

// Tracker exposes the alert set for the status surface.
func (m *Monitor) Tracker() *AlertTracker { return m.tracker }

// Run executes sampling cycles until the context is cancelled, then writes
// a final config save. The loop never terminates on its own: failures
// degrade to error dispatches and a backoff sleep.
func (m *Monitor) Run(ctx context.Context) {
	log.Printf("Monitor loop starting (source: %s, sensors: %d)", m.src.Name(), m.cfg.Count())
	defer func() {
		if err := m.cfg.Save(); err != nil {
			log.Printf("Final config save failed: %v", err)
		}
		log.Println("Monitor loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ok := m.cycle()

		wait := m.pollInterval()
		if !ok {
			wait = backoffInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// pollInterval follows the primary sensor's configured cadence so edits
// take effect on the next cycle.
func (m *Monitor) pollInterval() time.Duration {
	cfg, err := m.cfg.Sensor(0)
	if err != nil || cfg.PollIntervalSeconds <= 0 {
		return time.Duration(config.DefaultPollInterval) * time.Second
	}
	return time.Duration(cfg.PollIntervalSeconds) * time.Second
}

// cycle runs one sampling pass. Returns false when the source as a whole is
// down, which switches the loop to the backoff interval.
func (m *Monitor) cycle() bool {
	if !m.src.Ready() {
		log.Printf("Reading source %s unavailable", m.src.Name())
		m.dispatch.HardwareError()
		return false
	}

	if m.sweepDue() {
		return m.fullSweep()
	}
	return m.processSensor(0)
}

// sweepDue reports whether the local calendar date has advanced past the
// stored daily-check date. Absent or unparseable stored dates count as
// "never run".
func (m *Monitor) sweepDue() bool {
	last, ok := m.cfg.LastDailyCheck()
	if !ok {
		return true
	}
	ly, lm, ld := last.Local().Date()
	ny, nm, nd := m.now().Local().Date()
	if ny != ly {
		return ny > ly
	}
	if nm != lm {
		return nm > lm
	}
	return nd > ld
}

// fullSweep re-reads and reclassifies every sensor, then records the sweep
// timestamp, persisting it before the loop continues. Existing alert state
// is merged, not reset: only actual transitions are emitted.
func (m *Monitor) fullSweep() bool {
	log.Println("Running daily full sweep")
	ok := true
	for id := 0; id < m.cfg.Count(); id++ {
		if !m.processSensor(id) {
			ok = false
			break
		}
	}
	if ok {
		if err := m.cfg.SetLastDailyCheck(m.now()); err != nil {
			log.Printf("Could not persist daily check timestamp: %v", err)
		}
	}
	return ok
}

// processSensor reads, classifies and dispatches one sensor. Per-sensor
// failures (including panics) degrade to an UNKNOWN classification; only a
// source-wide outage propagates as a failed cycle.
func (m *Monitor) processSensor(id int) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Panic processing sensor %d: %v", id, rec)
			m.dispatchUnavailable(id)
			ok = true
		}
	}()

	cfg, err := m.cfg.Sensor(id)
	if err != nil {
		log.Printf("No config for sensor %d: %v", id, err)
		m.dispatchUnavailable(id)
		return true
	}

	r, err := m.src.Read(id)
	if err != nil {
		if errors.Is(err, source.ErrUnavailable) {
			log.Printf("Reading source down: %v", err)
			m.dispatch.HardwareError()
			return false
		}
		log.Printf("Sensor %d read failed: %v", id, err)
		m.dispatchUnavailable(id)
		return true
	}

	c := Classify(r.Voltage, cfg.DryThreshold, cfg.WetThreshold)
	m.emit(id, r, c)

	switch m.tracker.Update(id, c.IsAlert) {
	case Added:
		log.Printf("ALERT: %s (sensor %d) is dry", cfg.Name, id)
		m.dispatch.AlertChanged(id, true)
	case Removed:
		log.Printf("Alert cleared: %s (sensor %d)", cfg.Name, id)
		m.dispatch.AlertChanged(id, false)
	}
	return true
}

// dispatchUnavailable surfaces the explicit error state for one sensor.
// The alert set is left as-is: an unreadable sensor proves nothing about
// soil moisture either way.
func (m *Monitor) dispatchUnavailable(id int) {
	m.emit(id, source.Reading{SensorID: id}, Unavailable())
}

func (m *Monitor) emit(id int, r source.Reading, c Classification) {
	m.dispatch.Reading(id, r, c)
	if m.recorder != nil {
		m.recorder.Record(Update{SensorID: id, Reading: r, Classification: c, At: m.now()})
	}
}
