package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Events table - one row per logged alert or gesture event
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT '',
			snapshot TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		// Bindings table - maps an event label to a plugin action
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_mode ON events(mode)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
