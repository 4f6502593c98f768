// Package eventlog records alert and gesture events to CSV, SQLite and
// snapshot images.
package eventlog

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// Status values written with events.
const (
	StatusInsideZone = "Inside Zone"
	StatusFired      = "Fired"
	StatusUnbound    = "Unbound"
)

// Event is one logged occurrence.
type Event struct {
	Time       time.Time `json:"time"`
	Mode       string    `json:"mode"`
	EventID    string    `json:"event_id"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"`
	Snapshot   string    `json:"snapshot,omitempty"`
}

// Logger persists events.
type Logger interface {
	LogEvent(e Event) error
}

// Snapshotter saves alert frames and returns where they were written.
type Snapshotter interface {
	SaveSnapshot(frame *gocv.Mat, at time.Time) (string, error)
}

// Multi fans events out to several loggers. Every logger is called even
// when an earlier one fails; the errors are joined.
type Multi []Logger

// LogEvent implements Logger.
func (m Multi) LogEvent(e Event) error {
	var errs []error
	for _, l := range m {
		if err := l.LogEvent(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

// LogEvent implements Logger.
func (Discard) LogEvent(Event) error { return nil }
