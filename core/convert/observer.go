package convert

import (
	"time"

	"github.com/FocuswithJustin/Rescribe/core/ir"
)

// Event reports pipeline progress. Err is set when the stage failed;
// Warnings, LossClass and Duration only on StageDone.
type Event struct {
	RunID     string
	Stage     string
	From      string
	To        string
	Warnings  []ir.FidelityWarning
	LossClass ir.LossClass
	Duration  time.Duration
	Err       error
}

// Failed reports whether the event ends a run with an error.
func (e Event) Failed() bool { return e.Err != nil }

// Observer receives pipeline events. Observe is called synchronously from
// the converting goroutine and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans events out to several observers in order.
type Observers []Observer

// Observe implements Observer.
func (obs Observers) Observe(e Event) {
	for _, o := range obs {
		if o != nil {
			o.Observe(e)
		}
	}
}
