// internal/source/adc.go
package source

import (
	"fmt"
	"log"
)

// ADC abstracts one analog-to-digital converter channel read. The concrete
// device (MCP3008 over SPI or similar) lives behind this interface; bus
// details are out of scope here.
type ADC interface {
	// ReadChannel samples channel ch and returns the raw code and voltage.
	ReadChannel(ch int) (raw int, voltage float64, err error)
}

// ADCOpener initializes the converter hardware. It runs once at startup;
// failure marks the whole local source unavailable rather than aborting the
// process.
type ADCOpener func() (ADC, error)

// LocalADC reads sensors from local converter channels, one channel per
// sensor id.
type LocalADC struct {
	dev   ADC
	count int
	ready bool
}

// NewLocalADC opens the converter via open. On failure the returned source
// is permanently not ready and every Read reports ErrUnavailable, so the
// engine can surface a hardware-error state instead of silent zeros.
func NewLocalADC(open ADCOpener, sensorCount int) *LocalADC {
	dev, err := open()
	if err != nil {
		log.Printf("Hardware initialization failed: %v", err)
		return &LocalADC{count: sensorCount}
	}
	return &LocalADC{dev: dev, count: sensorCount, ready: true}
}

func (l *LocalADC) Ready() bool { return l.ready }

func (l *LocalADC) Name() string { return "local-adc" }

func (l *LocalADC) Read(sensorID int) (Reading, error) {
	if !l.ready {
		return Reading{}, ErrUnavailable
	}
	if sensorID < 0 || sensorID >= l.count {
		return Reading{}, fmt.Errorf("sensor id %d out of range [0,%d)", sensorID, l.count)
	}
	raw, voltage, err := l.dev.ReadChannel(sensorID)
	if err != nil {
		return Reading{}, fmt.Errorf("read channel %d: %w", sensorID, err)
	}
	if voltage < 0 {
		voltage = 0
	}
	if voltage > MaxVoltage {
		voltage = MaxVoltage
	}
	return Reading{SensorID: sensorID, RawCode: raw, Voltage: voltage}, nil
}
