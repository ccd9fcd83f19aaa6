package store

// runMigrations creates the schema. Every statement is idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Recognisable classes and the exact hand count each one needs
		`CREATE TABLE IF NOT EXISTS classes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			required_hands INTEGER NOT NULL DEFAULT 0 CHECK(required_hands >= 0),
			reserved INTEGER NOT NULL DEFAULT 0,
			samples INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Raw recorded feature vectors
		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// One trained template per class
		`CREATE TABLE IF NOT EXISTS templates (
			class_id TEXT PRIMARY KEY REFERENCES classes(id) ON DELETE CASCADE,
			vector TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Plugin action bound to a class
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			class_id TEXT NOT NULL UNIQUE REFERENCES classes(id) ON DELETE CASCADE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Confirmation and release history
		`CREATE TABLE IF NOT EXISTS confirmations (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('confirmed', 'reset')),
			class TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			streak INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_samples_class_id ON samples(class_id)`,
		`CREATE INDEX IF NOT EXISTS idx_confirmations_created_at ON confirmations(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
