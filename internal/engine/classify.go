// internal/engine/classify.go
package engine

// MoistureState is the classified condition of one sensor's soil.
type MoistureState string

const (
	StateDry     MoistureState = "DRY"
	StatePerfect MoistureState = "PERFECT"
	StateWet     MoistureState = "WET"

	// StateUnknown is the explicit error state substituted when a sensor
	// cannot be read. It is never produced by Classify.
	StateUnknown MoistureState = "UNKNOWN"
)

const maxVoltage = 3.3

// Classification is the result of mapping a voltage onto a sensor's
// calibrated thresholds. DisplayValue is a 0-100 scale for the
// presentation layer's moisture bar: 0-20 dry band, 20-80 perfect band,
// 80-100 wet band.
type Classification struct {
	State        MoistureState `json:"state"`
	DisplayValue float64       `json:"display_value"`
	IsAlert      bool          `json:"is_alert"`
}

// Unavailable is the classification dispatched for a sensor that could not
// be read.
func Unavailable() Classification {
	return Classification{State: StateUnknown}
}

// Classify maps a voltage to a moisture state given the sensor's dry and
// wet thresholds. Total: degenerate threshold pairs fall back to the band
// floor instead of dividing by zero.
func Classify(voltage, dryThreshold, wetThreshold float64) Classification {
	switch {
	case voltage < dryThreshold:
		v := 0.0
		if dryThreshold != 0 {
			v = clamp(voltage / dryThreshold * 20)
		}
		return Classification{State: StateDry, DisplayValue: v, IsAlert: true}

	case voltage > wetThreshold:
		v := 100.0
		if wetThreshold != maxVoltage {
			v = clamp(80 + (voltage-wetThreshold)/(maxVoltage-wetThreshold)*20)
		}
		return Classification{State: StateWet, DisplayValue: v}

	default:
		v := 20.0
		if wetThreshold != dryThreshold {
			v = clamp(20 + (voltage-dryThreshold)/(wetThreshold-dryThreshold)*60)
		}
		return Classification{State: StatePerfect, DisplayValue: v}
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
