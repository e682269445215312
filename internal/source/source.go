// internal/source/source.go
package source

import "errors"

// Reading is one voltage sample from a moisture sensor. RawCode is the
// device-native integer where the source has one (local ADC); network and
// simulated sources derive it from the voltage so the presentation layer
// always has something to show.
type Reading struct {
	SensorID int     `json:"sensor_id"`
	RawCode  int     `json:"raw_code"`
	Voltage  float64 `json:"voltage"`
}

var (
	// ErrUnavailable means the source as a whole cannot produce readings
	// (hardware init failed, listener never bound).
	ErrUnavailable = errors.New("source: unavailable")

	// ErrNoData means the source is healthy but has never seen a value for
	// this sensor id (network variant before the first report arrives).
	ErrNoData = errors.New("source: no data yet for sensor")
)

// ReadingSource produces the latest voltage sample for a sensor id.
// Implementations must be safe for use from the monitor goroutine while the
// ingest goroutine (if any) writes concurrently.
type ReadingSource interface {
	// Ready reports whether the source can produce readings at all.
	Ready() bool

	// Read returns the current sample for the given sensor id.
	// Returns ErrUnavailable when the source is down and ErrNoData when the
	// source has nothing for this id yet.
	Read(sensorID int) (Reading, error)

	// Name identifies the source variant in logs.
	Name() string
}

// MaxVoltage is the ADC reference voltage; every sample is validated or
// clamped against [0, MaxVoltage].
const MaxVoltage = 3.3

// voltageToRaw maps a voltage back onto the 16-bit scale the MCP3008
// wrapper reports, so non-ADC sources produce plausible raw codes.
func voltageToRaw(v float64) int {
	if v < 0 {
		v = 0
	}
	if v > MaxVoltage {
		v = MaxVoltage
	}
	return int(v / MaxVoltage * 65535)
}
