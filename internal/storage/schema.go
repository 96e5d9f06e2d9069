// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines owner-scoped tables for profiles, settings, activities, growth, and schedules.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		telegram_id INTEGER PRIMARY KEY,
		profile_data TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		telegram_id INTEGER PRIMARY KEY,
		settings_data TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		telegram_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		end_timestamp TEXT,
		sub_type TEXT,
		notes TEXT,
		amount REAL,
		unit TEXT,
		medication_name TEXT,
		metadata TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS custom_activities (
		id TEXT PRIMARY KEY,
		telegram_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		schedule TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS growth_records (
		id TEXT PRIMARY KEY,
		telegram_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 0,
		weight_unit TEXT NOT NULL DEFAULT '',
		height REAL NOT NULL DEFAULT 0,
		height_unit TEXT NOT NULL DEFAULT '',
		age_in_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notification_schedules (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		chat_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		schedule_data TEXT NOT NULL,
		next_run TEXT,
		last_run TEXT,
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_owner_time ON activities(telegram_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_activities_owner_type ON activities(telegram_id, type, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_custom_activities_owner ON custom_activities(telegram_id);
	CREATE INDEX IF NOT EXISTS idx_growth_owner_date ON growth_records(telegram_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_schedules_owner ON notification_schedules(user_id);
	CREATE INDEX IF NOT EXISTS idx_schedules_due ON notification_schedules(enabled, next_run);
	`

	_, err := d.db.Exec(schema)
	return err
}
