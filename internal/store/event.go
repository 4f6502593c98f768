package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event is a logged alert or gesture event.
type Event struct {
	ID         string
	Mode       string
	Label      string
	Confidence float64
	Status     string
	Snapshot   string
	CreatedAt  time.Time
}

// EventRepository provides access to logged events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts e, assigning an ID and timestamp when unset.
func (r *EventRepository) Create(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO events (id, mode, label, confidence, status, snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Mode, e.Label, e.Confidence, e.Status, e.Snapshot, e.CreatedAt,
	)
	return err
}

// GetByID retrieves an event by its ID.
func (r *EventRepository) GetByID(id string) (*Event, error) {
	e := &Event{}
	err := r.db.QueryRow(
		`SELECT id, mode, label, confidence, status, snapshot, created_at
		 FROM events WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.Mode, &e.Label, &e.Confidence, &e.Status, &e.Snapshot, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns up to limit events, newest first. A mode filters by mode
// when non-empty.
func (r *EventRepository) List(mode string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, mode, label, confidence, status, snapshot, created_at FROM events`
	args := []any{}
	if mode != "" {
		query += ` WHERE mode = ?`
		args = append(args, mode)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Mode, &e.Label, &e.Confidence, &e.Status, &e.Snapshot, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Count returns the number of stored events.
func (r *EventRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// DeleteBefore removes events created before t and returns how many were
// removed.
func (r *EventRepository) DeleteBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM events WHERE created_at < ?`, t)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
