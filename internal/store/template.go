package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Template is the trained feature vector of a class.
type Template struct {
	ClassID   string
	ClassName string
	Vector    []float64
	UpdatedAt time.Time
}

// TemplateRepository stores trained templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

// Save upserts the template of a class.
func (r *TemplateRepository) Save(classID string, vector []float64) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO templates (class_id, vector, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(class_id) DO UPDATE SET vector = excluded.vector, updated_at = excluded.updated_at`,
		classID, string(data), time.Now(),
	)
	return err
}

// Get returns the template of a class.
func (r *TemplateRepository) Get(classID string) (*Template, error) {
	t := &Template{}
	var data string

	err := r.db.QueryRow(
		`SELECT t.class_id, c.name, t.vector, t.updated_at
		 FROM templates t JOIN classes c ON c.id = t.class_id
		 WHERE t.class_id = ?`,
		classID,
	).Scan(&t.ClassID, &t.ClassName, &data, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &t.Vector); err != nil {
		return nil, fmt.Errorf("decode template for %s: %w", classID, err)
	}
	return t, nil
}

// List returns every stored template with its class name.
func (r *TemplateRepository) List() ([]*Template, error) {
	rows, err := r.db.Query(
		`SELECT t.class_id, c.name, t.vector, t.updated_at
		 FROM templates t JOIN classes c ON c.id = t.class_id
		 ORDER BY c.name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		var data string
		if err := rows.Scan(&t.ClassID, &t.ClassName, &data, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &t.Vector); err != nil {
			return nil, fmt.Errorf("decode template for %s: %w", t.ClassID, err)
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}
