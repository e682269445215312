// internal/engine/dispatch.go
package engine

import (
	"context"
	"log"

	"github.com/Gavinw575/plant-moisture-monitor/internal/source"
)

// UpdateSink is the presentation layer's view of the engine. All three
// methods are invoked from a single dispatcher goroutine, never
// concurrently, because presentation state is not safe for concurrent
// mutation.
type UpdateSink interface {
	OnReading(sensorID int, r source.Reading, c Classification)
	OnAlertChanged(sensorID int, added bool)
	OnHardwareError()
}

type eventKind int

const (
	evReading eventKind = iota
	evAlert
	evHardwareError
)

type event struct {
	kind     eventKind
	sensorID int
	reading  source.Reading
	class    Classification
	added    bool
}

// Dispatcher serializes every engine-to-presentation call through one
// consumer goroutine. Producers enqueue and never block the monitoring
// cycle for long: a full queue drops the oldest semantics are avoided by a
// generous buffer, and a persistently stuck sink is logged.
type Dispatcher struct {
	sink   UpdateSink
	events chan event
}

func NewDispatcher(sink UpdateSink) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		events: make(chan event, 256),
	}
}

// Run consumes events until the context is cancelled. Start exactly one.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			switch ev.kind {
			case evReading:
				d.sink.OnReading(ev.sensorID, ev.reading, ev.class)
			case evAlert:
				d.sink.OnAlertChanged(ev.sensorID, ev.added)
			case evHardwareError:
				d.sink.OnHardwareError()
			}
		}
	}
}

func (d *Dispatcher) enqueue(ev event) {
	select {
	case d.events <- ev:
	default:
		log.Println("Dispatch queue full, dropping update")
	}
}

// Reading hands a classified sample to the presentation layer.
func (d *Dispatcher) Reading(sensorID int, r source.Reading, c Classification) {
	d.enqueue(event{kind: evReading, sensorID: sensorID, reading: r, class: c})
}

// AlertChanged reports one alert-set transition.
func (d *Dispatcher) AlertChanged(sensorID int, added bool) {
	d.enqueue(event{kind: evAlert, sensorID: sensorID, added: added})
}

// HardwareError reports that the reading source as a whole is down.
func (d *Dispatcher) HardwareError() {
	d.enqueue(event{kind: evHardwareError})
}
