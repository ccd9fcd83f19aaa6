package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sample is a recorded training frame.
type Sample struct {
	ID          int64           `json:"id"`
	ClassID     string          `json:"class_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository stores training samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Replace swaps every sample of a class for samples in one transaction and
// updates the class sample count.
func (r *SampleRepository) Replace(classID string, samples []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM samples WHERE class_id = ?`, classID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO samples (class_id, sample_index, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i, data := range samples {
		if _, err := stmt.Exec(classID, i, string(data), now); err != nil {
			return err
		}
	}

	res, err := tx.Exec(`UPDATE classes SET samples = ?, updated_at = ? WHERE id = ?`, len(samples), now, classID)
	if err != nil {
		return err
	}
	if err := affectedOne(res); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByClassID returns the samples of a class in recording order.
func (r *SampleRepository) GetByClassID(classID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, class_id, sample_index, data, created_at
		 FROM samples WHERE class_id = ? ORDER BY sample_index`,
		classID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.ClassID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// RawByClassID returns just the sample payloads.
func (r *SampleRepository) RawByClassID(classID string) ([]json.RawMessage, error) {
	samples, err := r.GetByClassID(classID)
	if err != nil {
		return nil, err
	}
	raw := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		raw[i] = s.Data
	}
	return raw, nil
}
