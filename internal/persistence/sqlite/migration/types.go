package migration

import "time"

// Migration represents a database migration with its metadata and SQL content
type Migration struct {
	Version     string // Version identifier (e.g., "001", "002")
	Description string // Human-readable description of the migration
	SQL         string // SQL statements to execute
	FilePath    string // Path to the migration file inside the source FS
	Checksum    string // SHA-256 of the SQL content
}

// AppliedMigration represents a migration that has been successfully applied
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status provides information about the current migration state
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}
