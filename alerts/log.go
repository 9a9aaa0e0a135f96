package alerts

import (
	"github.com/pkg/errors"
)

// Log is a durable sink for events
type Log interface {
	Append(event Event) error
	Close() error
}

// NopLog drops every event
type NopLog struct{}

// Append does nothing
func (NopLog) Append(Event) error { return nil }

// Close does nothing
func (NopLog) Close() error { return nil }

// MultiLog writes every event to each of the sinks.
// A failing sink does not prevent writes to the rest.
type MultiLog struct {
	sinks []Log
}

// NewMultiLog creates fan-out log. Nil sinks are ignored.
func NewMultiLog(sinks ...Log) *MultiLog {
	filtered := make([]Log, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return &MultiLog{sinks: filtered}
}

// Append writes event to each sink and returns first error annotated with the number of failed sinks
func (multi *MultiLog) Append(event Event) error {
	return multi.each(func(sink Log) error {
		return sink.Append(event)
	})
}

// Close closes each sink
func (multi *MultiLog) Close() error {
	return multi.each(func(sink Log) error {
		return sink.Close()
	})
}

func (multi *MultiLog) each(fn func(Log) error) error {
	var first error
	failed := 0
	for _, sink := range multi.sinks {
		if err := fn(sink); err != nil {
			if first == nil {
				first = err
			}
			failed++
		}
	}
	if first == nil {
		return nil
	}
	if failed > 1 {
		return errors.Wrapf(first, "%d of %d sinks failed", failed, len(multi.sinks))
	}
	return first
}
