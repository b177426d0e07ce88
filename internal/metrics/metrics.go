// Package metrics records simulation events into metric backends.
package metrics

import "github.com/chrisdamba/deliverysim/internal/models"

// Sink consumes simulation events.
type Sink interface {
	RecordEvent(ev models.Event) error
}

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordEvent forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordEvent(ev models.Event) error {
	for _, s := range m.Sinks {
		if err := s.RecordEvent(ev); err != nil {
			return err
		}
	}
	return nil
}
