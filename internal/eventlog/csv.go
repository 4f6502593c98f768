package eventlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// CSV layout.
const (
	csvTimeLayout      = "2006-01-02 15:04:05"
	snapshotTimeLayout = "20060102_150405"
)

var csvHeader = []string{"Timestamp", "Event_ID", "Confidence", "Status"}

// CSVLogger appends events to a CSV file and writes snapshots as JPEG
// files in a sibling directory.
type CSVLogger struct {
	path         string
	snapshotsDir string
	mu           sync.Mutex
}

// NewCSVLogger creates the log and snapshot directories if needed and writes
// the header when the log file is new.
func NewCSVLogger(logPath, snapshotsDir string) (*CSVLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := os.MkdirAll(snapshotsDir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshots dir: %w", err)
	}

	l := &CSVLogger{path: logPath, snapshotsDir: snapshotsDir}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		if err := l.appendRow(csvHeader); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Path returns the CSV file path.
func (l *CSVLogger) Path() string {
	return l.path
}

// LogEvent appends one row.
func (l *CSVLogger) LogEvent(e Event) error {
	return l.appendRow([]string{
		e.Time.Format(csvTimeLayout),
		e.EventID,
		strconv.FormatFloat(e.Confidence, 'f', 2, 64),
		e.Status,
	})
}

// SaveSnapshot writes frame as alert_<timestamp>.jpg.
func (l *CSVLogger) SaveSnapshot(frame *gocv.Mat, at time.Time) (string, error) {
	if frame == nil || frame.Empty() {
		return "", fmt.Errorf("snapshot: empty frame")
	}

	path := filepath.Join(l.snapshotsDir, "alert_"+at.Format(snapshotTimeLayout)+".jpg")
	if !gocv.IMWrite(path, *frame) {
		return "", fmt.Errorf("snapshot: write %s failed", path)
	}
	return path, nil
}

func (l *CSVLogger) appendRow(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write event log: %w", err)
	}
	w.Flush()
	return w.Error()
}
