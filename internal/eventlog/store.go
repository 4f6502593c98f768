package eventlog

import (
	"github.com/ayusman/rtspwatch/internal/store"
)

// StoreLogger writes events to the SQLite event table.
type StoreLogger struct {
	store *store.Store
}

// NewStoreLogger creates a logger backed by s.
func NewStoreLogger(s *store.Store) *StoreLogger {
	return &StoreLogger{store: s}
}

// LogEvent implements Logger.
func (l *StoreLogger) LogEvent(e Event) error {
	return l.store.Events().Create(&store.Event{
		Mode:       e.Mode,
		Label:      e.EventID,
		Confidence: e.Confidence,
		Status:     e.Status,
		Snapshot:   e.Snapshot,
		CreatedAt:  e.Time,
	})
}
