package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/confirm"
)

// Class is a recognisable gesture class.
type Class struct {
	ID            string
	Name          string
	RequiredHands int
	Reserved      bool
	Samples       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ClassRepository provides CRUD operations for classes.
type ClassRepository struct {
	db *sql.DB
}

// Classes returns the class repository for this store.
func (s *Store) Classes() *ClassRepository {
	return &ClassRepository{db: s.db}
}

const classColumns = `id, name, required_hands, reserved, samples, created_at, updated_at`

func scanClass(row interface{ Scan(...any) error }) (*Class, error) {
	c := &Class{}
	var reserved int
	if err := row.Scan(&c.ID, &c.Name, &c.RequiredHands, &reserved, &c.Samples, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Reserved = reserved != 0
	return c, nil
}

// Create inserts c. An empty ID is filled with a new UUID.
func (r *ClassRepository) Create(c *Class) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO classes (`+classColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.RequiredHands, boolInt(c.Reserved), c.Samples, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetByID retrieves a class by its ID.
func (r *ClassRepository) GetByID(id string) (*Class, error) {
	c, err := scanClass(r.db.QueryRow(`SELECT `+classColumns+` FROM classes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// GetByName retrieves a class by its name.
func (r *ClassRepository) GetByName(name string) (*Class, error) {
	c, err := scanClass(r.db.QueryRow(`SELECT `+classColumns+` FROM classes WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// List returns every class ordered by name.
func (r *ClassRepository) List() ([]*Class, error) {
	rows, err := r.db.Query(`SELECT ` + classColumns + ` FROM classes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []*Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}

	return classes, rows.Err()
}

// Update saves name, required hands and reserved flag.
func (r *ClassRepository) Update(c *Class) error {
	c.UpdatedAt = time.Now()

	res, err := r.db.Exec(
		`UPDATE classes SET name = ?, required_hands = ?, reserved = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.RequiredHands, boolInt(c.Reserved), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// Delete removes a class and, by cascade, its samples, template and action.
func (r *ClassRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM classes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// SeedDefaults inserts specs when the class table is empty. The class named
// reserved is flagged as such.
func (r *ClassRepository) SeedDefaults(specs []confirm.ClassSpec, reserved string) error {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM classes`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, spec := range specs {
		c := &Class{
			Name:          spec.Name,
			RequiredHands: spec.RequiredFeatureCount,
			Reserved:      spec.Name == reserved,
		}
		if err := r.Create(c); err != nil {
			return err
		}
	}
	return nil
}

// ClassSpecs returns the class table in the form the confirmer takes, plus
// the name of the reserved class (empty when none is flagged).
func (r *ClassRepository) ClassSpecs() ([]confirm.ClassSpec, string, error) {
	classes, err := r.List()
	if err != nil {
		return nil, "", err
	}

	specs := make([]confirm.ClassSpec, 0, len(classes))
	var reserved string
	for _, c := range classes {
		specs = append(specs, confirm.ClassSpec{Name: c.Name, RequiredFeatureCount: c.RequiredHands})
		if c.Reserved {
			reserved = c.Name
		}
	}
	return specs, reserved, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
