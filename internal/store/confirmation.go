package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Event kinds recorded in the confirmation history.
const (
	KindConfirmed = "confirmed"
	KindReset     = "reset"
)

// Confirmation is one history row.
type Confirmation struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	Streak     int       `json:"streak"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConfirmationRepository stores the confirmation history.
type ConfirmationRepository struct {
	db *sql.DB
}

// Confirmations returns the confirmation repository for this store.
func (s *Store) Confirmations() *ConfirmationRepository {
	return &ConfirmationRepository{db: s.db}
}

// Record inserts c, filling ID and CreatedAt when unset.
func (r *ConfirmationRepository) Record(c *Confirmation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO confirmations (id, kind, class, confidence, streak, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Kind, c.Class, c.Confidence, c.Streak, c.CreatedAt,
	)
	return err
}

// Recent returns up to limit rows, newest first. A non-positive limit means 50.
func (r *ConfirmationRepository) Recent(limit int) ([]*Confirmation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, kind, class, confidence, streak, created_at
		 FROM confirmations ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Confirmation
	for rows.Next() {
		c := &Confirmation{}
		if err := rows.Scan(&c.ID, &c.Kind, &c.Class, &c.Confidence, &c.Streak, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

// CountByClass returns the number of confirmations per class.
func (r *ConfirmationRepository) CountByClass() (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT class, COUNT(*) FROM confirmations WHERE kind = ? GROUP BY class`,
		KindConfirmed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, err
		}
		counts[class] = n
	}

	return counts, rows.Err()
}
