package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// The goose migrations target Postgres. SQLite runs (dev and tests) get this
// equivalent schema instead.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'technician',
		status TEXT NOT NULL DEFAULT 'free',
		current_assignment_id TEXT,
		total_hours REAL NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS stores (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		lat REAL,
		lng REAL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		stop_ids TEXT NOT NULL DEFAULT '{}',
		lead_user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'assigned',
		planned_start_at DATETIME NOT NULL,
		due_at DATETIME,
		completed_at DATETIME,
		real_start_at DATETIME,
		real_completed_at DATETIME,
		distance_km REAL NOT NULL DEFAULT 0 CHECK (distance_km >= 0),
		driving_minutes INTEGER NOT NULL DEFAULT 0 CHECK (driving_minutes >= 0),
		worked_hours REAL NOT NULL DEFAULT 0 CHECK (worked_hours >= 0),
		route_method TEXT,
		vehicle_id TEXT,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS assignment_participants (
		assignment_id TEXT NOT NULL REFERENCES assignments(id),
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (assignment_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS work_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		assignment_id TEXT NOT NULL,
		work_date DATE NOT NULL,
		hours REAL NOT NULL CHECK (hours >= 0),
		kilometers REAL NOT NULL CHECK (kilometers >= 0),
		description TEXT NOT NULL,
		created_at DATETIME,
		CONSTRAINT work_logs_assignment_user_key UNIQUE (assignment_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS vehicle_presence (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_id TEXT NOT NULL,
		detected_at DATETIME NOT NULL,
		distance_from_base_km REAL NOT NULL,
		near_base BOOLEAN NOT NULL
	)`,
}

// EnsureSQLiteSchema creates any missing fieldops table on a SQLite connection.
func EnsureSQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	if conn.Dialector.Name() != "sqlite" {
		return fmt.Errorf("sqlite schema requested on %s", conn.Dialector.Name())
	}
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("create sqlite schema: %w", err)
		}
	}
	return nil
}
