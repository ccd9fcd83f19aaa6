package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action binds a class to a plugin action.
type Action struct {
	ID         string
	ClassID    string
	PluginName string
	ActionName string
	Config     json.RawMessage
	Enabled    bool
	CreatedAt  time.Time
}

// ActionRepository provides CRUD operations for actions.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

const actionColumns = `id, class_id, plugin_name, action_name, config, enabled, created_at`

func scanAction(row interface{ Scan(...any) error }) (*Action, error) {
	a := &Action{}
	var config string
	var enabled int
	if err := row.Scan(&a.ID, &a.ClassID, &a.PluginName, &a.ActionName, &config, &enabled, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Config = json.RawMessage(config)
	a.Enabled = enabled != 0
	return a, nil
}

func configText(c json.RawMessage) string {
	if len(c) == 0 {
		return "{}"
	}
	return string(c)
}

// Create inserts a. An empty ID is filled with a new UUID. A class holds at
// most one action.
func (r *ActionRepository) Create(a *Action) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ClassID, a.PluginName, a.ActionName, configText(a.Config), boolInt(a.Enabled), a.CreatedAt,
	)
	return err
}

// GetByID retrieves an action by its ID.
func (r *ActionRepository) GetByID(id string) (*Action, error) {
	a, err := scanAction(r.db.QueryRow(`SELECT `+actionColumns+` FROM actions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetByClassName returns the action bound to the named class.
// Returns nil, nil when no action is bound.
func (r *ActionRepository) GetByClassName(name string) (*Action, error) {
	a, err := scanAction(r.db.QueryRow(
		`SELECT a.id, a.class_id, a.plugin_name, a.action_name, a.config, a.enabled, a.created_at
		 FROM actions a JOIN classes c ON c.id = a.class_id
		 WHERE c.name = ?`,
		name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// List returns every action, newest first.
func (r *ActionRepository) List() ([]*Action, error) {
	rows, err := r.db.Query(`SELECT ` + actionColumns + ` FROM actions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	return actions, rows.Err()
}

// Update saves every field except the ID and creation time.
func (r *ActionRepository) Update(a *Action) error {
	res, err := r.db.Exec(
		`UPDATE actions SET class_id = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ? WHERE id = ?`,
		a.ClassID, a.PluginName, a.ActionName, configText(a.Config), boolInt(a.Enabled), a.ID,
	)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// Delete removes an action by its ID.
func (r *ActionRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
