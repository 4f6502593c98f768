package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Binding maps an event label (such as SWIPE_RIGHT) to a plugin action.
type Binding struct {
	ID         string
	Label      string
	PluginName string
	ActionName string
	Params     json.RawMessage
	Enabled    bool
	CreatedAt  time.Time
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

// Create inserts a new binding into the database.
func (r *BindingRepository) Create(b *Binding) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO bindings (id, label, plugin_name, action_name, params, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Label, b.PluginName, b.ActionName, string(orEmptyObject(b.Params)), b.Enabled, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT id, label, plugin_name, action_name, params, enabled, created_at
		 FROM bindings WHERE id = ?`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetByLabel retrieves the binding for an event label.
// Returns nil, nil if nothing is bound to the label.
func (r *BindingRepository) GetByLabel(label string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT id, label, plugin_name, action_name, params, enabled, created_at
		 FROM bindings WHERE label = ?`,
		label,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// List retrieves all bindings ordered by label.
func (r *BindingRepository) List() ([]*Binding, error) {
	rows, err := r.db.Query(
		`SELECT id, label, plugin_name, action_name, params, enabled, created_at
		 FROM bindings ORDER BY label`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Update updates an existing binding in the database.
func (r *BindingRepository) Update(b *Binding) error {
	result, err := r.db.Exec(
		`UPDATE bindings SET label = ?, plugin_name = ?, action_name = ?, params = ?, enabled = ?
		 WHERE id = ?`,
		b.Label, b.PluginName, b.ActionName, string(orEmptyObject(b.Params)), b.Enabled, b.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Seed inserts each binding whose label is not bound yet. Existing
// bindings, including user edits, are left alone.
func (r *BindingRepository) Seed(defaults []*Binding) error {
	for _, b := range defaults {
		existing, err := r.GetByLabel(b.Label)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := r.Create(b); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (*Binding, error) {
	b := &Binding{}
	var params string
	var enabled int

	if err := row.Scan(&b.ID, &b.Label, &b.PluginName, &b.ActionName, &params, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Params = json.RawMessage(params)
	b.Enabled = enabled != 0
	return b, nil
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
