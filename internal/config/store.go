// internal/config/store.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Calibration defaults for a sensor that has never been configured.
const (
	DefaultDryThreshold = 1.5
	DefaultWetThreshold = 2.5
	DefaultPollInterval = 2

	maxThresholdVolts = 3.3
)

var (
	// ErrInvalidThresholdRange is returned when a threshold update violates
	// 0 <= dry < wet <= 3.3. The stored config is left untouched.
	ErrInvalidThresholdRange = errors.New("config: invalid threshold range")

	// ErrUnknownSensor is returned for a sensor id outside the configured
	// count.
	ErrUnknownSensor = errors.New("config: unknown sensor id")
)

// SensorConfig is the persisted calibration for one monitored plant.
type SensorConfig struct {
	ID                  int
	Name                string
	DryThreshold        float64
	WetThreshold        float64
	PollIntervalSeconds int
	ImagePath           string
}

// sensorFile is the on-disk shape of one plant entry.
type sensorFile struct {
	DryThreshold   float64 `json:"dry_threshold"`
	WetThreshold   float64 `json:"wet_threshold"`
	UpdateInterval int     `json:"update_interval"`
	Name           string  `json:"name"`
	ImagePath      string  `json:"image_path"`
}

// Store owns the calibration file (moisture_config.json). All mutation goes
// through its methods; callers never see a read-modify-write split. Load
// never fails: any unreadable or corrupt state degrades to defaults which
// are immediately saved so the backing file becomes valid again. Unknown
// keys in the file, top-level or per-sensor, survive a save untouched.
type Store struct {
	path  string
	count int

	mu             sync.Mutex
	sensors        []SensorConfig
	lastDailyCheck time.Time // zero means never run
	topExtras      map[string]json.RawMessage
	sensorExtras   []map[string]json.RawMessage
}

// NewStore loads (or creates) the calibration file for count sensors.
func NewStore(path string, count int) *Store {
	s := &Store{path: path, count: count}
	s.load()
	return s
}

func defaultSensor(id int) SensorConfig {
	return SensorConfig{
		ID:                  id,
		Name:                fmt.Sprintf("Plant %d", id+1),
		DryThreshold:        DefaultDryThreshold,
		WetThreshold:        DefaultWetThreshold,
		PollIntervalSeconds: DefaultPollInterval,
	}
}

func sensorKey(id int) string { return fmt.Sprintf("plant_%d", id) }

// load reads the backing file, repairing whatever it can. Missing sensor
// entries are filled with defaults without discarding valid ones; a corrupt
// entry is re-defaulted; an unparseable last_dry_check is treated as "never
// run". Any repair triggers an immediate save.
func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sensors = make([]SensorConfig, s.count)
	s.sensorExtras = make([]map[string]json.RawMessage, s.count)
	s.topExtras = make(map[string]json.RawMessage)
	for i := range s.sensors {
		s.sensors[i] = defaultSensor(i)
	}

	dirty := false
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Config file unreadable, using defaults: %v", err)
		}
		dirty = true
	}

	var doc map[string]json.RawMessage
	if !dirty {
		if err := json.Unmarshal(raw, &doc); err != nil {
			log.Printf("Config file malformed, using defaults: %v", err)
			dirty = true
		}
	}

	if doc != nil {
		for key, val := range doc {
			if key == "last_dry_check" {
				var ts string
				if err := json.Unmarshal(val, &ts); err != nil || ts == "" {
					if err != nil {
						log.Printf("Ignoring malformed last_dry_check: %v", err)
					}
					continue
				}
				t, err := time.Parse(time.RFC3339, ts)
				if err != nil {
					// Treated as never run; the next cycle sweeps.
					log.Printf("Ignoring unparseable last_dry_check %q: %v", ts, err)
					dirty = true
					continue
				}
				s.lastDailyCheck = t
				continue
			}

			if id, ok := parseSensorDocKey(key); ok && id >= 0 && id < s.count {
				cfg, extras, err := parseSensorEntry(id, val)
				if err != nil {
					log.Printf("Re-defaulting corrupt entry for %s: %v", key, err)
					dirty = true
					continue
				}
				s.sensors[id] = cfg
				s.sensorExtras[id] = extras
				continue
			}

			// Unknown top-level key, keep it as-is.
			s.topExtras[key] = val
		}

		// Check whether any configured sensor was missing from the file.
		for i := 0; i < s.count; i++ {
			if _, ok := doc[sensorKey(i)]; !ok {
				dirty = true
			}
		}
	}

	if dirty {
		if err := s.saveLocked(); err != nil {
			log.Printf("Could not save repaired config: %v", err)
		}
	}
}

// parseSensorDocKey accepts only exact "plant_<int>" keys; anything with a
// different suffix is an unknown key and must be preserved, not parsed.
func parseSensorDocKey(key string) (int, bool) {
	if !strings.HasPrefix(key, "plant_") {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(key, "plant_"))
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseSensorEntry(id int, raw json.RawMessage) (SensorConfig, map[string]json.RawMessage, error) {
	var sf sensorFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return SensorConfig{}, nil, err
	}
	if err := validateThresholds(sf.DryThreshold, sf.WetThreshold); err != nil {
		return SensorConfig{}, nil, err
	}
	if sf.UpdateInterval <= 0 {
		return SensorConfig{}, nil, fmt.Errorf("update_interval %d must be positive", sf.UpdateInterval)
	}
	cfg := SensorConfig{
		ID:                  id,
		Name:                sf.Name,
		DryThreshold:        sf.DryThreshold,
		WetThreshold:        sf.WetThreshold,
		PollIntervalSeconds: sf.UpdateInterval,
		ImagePath:           sf.ImagePath,
	}
	if cfg.Name == "" {
		cfg.Name = defaultSensor(id).Name
	}

	var extras map[string]json.RawMessage
	if err := json.Unmarshal(raw, &extras); err == nil {
		for _, known := range []string{"dry_threshold", "wet_threshold", "update_interval", "name", "image_path"} {
			delete(extras, known)
		}
		if len(extras) == 0 {
			extras = nil
		}
	}
	return cfg, extras, nil
}

func validateThresholds(dry, wet float64) error {
	if dry < 0 || dry > maxThresholdVolts || wet < 0 || wet > maxThresholdVolts || dry >= wet {
		return fmt.Errorf("%w: dry=%.2f wet=%.2f", ErrInvalidThresholdRange, dry, wet)
	}
	return nil
}

// Save writes the full document atomically: temp file in the same
// directory, fsync, then rename over the target. A failure leaves the old
// file intact and is reported, never fatal.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	doc := make(map[string]interface{}, s.count+1+len(s.topExtras))
	for key, val := range s.topExtras {
		doc[key] = val
	}

	lastCheck := ""
	if !s.lastDailyCheck.IsZero() {
		lastCheck = s.lastDailyCheck.Format(time.RFC3339)
	}
	doc["last_dry_check"] = lastCheck

	for i, cfg := range s.sensors {
		entry := make(map[string]interface{}, 5+len(s.sensorExtras[i]))
		for key, val := range s.sensorExtras[i] {
			entry[key] = val
		}
		entry["dry_threshold"] = cfg.DryThreshold
		entry["wet_threshold"] = cfg.WetThreshold
		entry["update_interval"] = cfg.PollIntervalSeconds
		entry["name"] = cfg.Name
		entry["image_path"] = cfg.ImagePath
		doc[sensorKey(i)] = entry
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".moisture_config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Count returns the configured sensor count.
func (s *Store) Count() int { return s.count }

// Sensors returns a snapshot of every sensor's calibration.
func (s *Store) Sensors() []SensorConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SensorConfig, len(s.sensors))
	copy(out, s.sensors)
	return out
}

// Sensor returns the calibration for one sensor id.
func (s *Store) Sensor(id int) (SensorConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= s.count {
		return SensorConfig{}, fmt.Errorf("%w: %d", ErrUnknownSensor, id)
	}
	return s.sensors[id], nil
}

// UpdateThresholds validates and persists new calibration thresholds for a
// sensor. On a validation error nothing changes, in memory or on disk.
func (s *Store) UpdateThresholds(id int, dry, wet float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= s.count {
		return fmt.Errorf("%w: %d", ErrUnknownSensor, id)
	}
	if err := validateThresholds(dry, wet); err != nil {
		return err
	}
	s.sensors[id].DryThreshold = dry
	s.sensors[id].WetThreshold = wet
	if err := s.saveLocked(); err != nil {
		log.Printf("Could not save config after threshold update: %v", err)
	}
	return nil
}

// Rename sets the display name for a sensor and persists.
func (s *Store) Rename(id int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= s.count {
		return fmt.Errorf("%w: %d", ErrUnknownSensor, id)
	}
	if name == "" {
		name = defaultSensor(id).Name
	}
	s.sensors[id].Name = name
	if err := s.saveLocked(); err != nil {
		log.Printf("Could not save config after rename: %v", err)
	}
	return nil
}

// SetImagePath stores the presentation layer's image path for a sensor.
// The engine never interprets it.
func (s *Store) SetImagePath(id int, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= s.count {
		return fmt.Errorf("%w: %d", ErrUnknownSensor, id)
	}
	s.sensors[id].ImagePath = path
	if err := s.saveLocked(); err != nil {
		log.Printf("Could not save config after image path update: %v", err)
	}
	return nil
}

// LastDailyCheck returns the stored daily-sweep timestamp; ok is false when
// the sweep has never run.
func (s *Store) LastDailyCheck() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDailyCheck, !s.lastDailyCheck.IsZero()
}

// SetLastDailyCheck records a completed daily sweep and persists before
// returning, so a crash cannot re-arm the sweep retroactively.
func (s *Store) SetLastDailyCheck(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDailyCheck = t
	return s.saveLocked()
}
