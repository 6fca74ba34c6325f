package pg

import "errors"

var (
	// ErrParseConfig is returned when the connection string is malformed.
	ErrParseConfig = errors.New("failed to parse postgres config")

	// ErrOpenConnection is returned when all connection attempts fail.
	ErrOpenConnection = errors.New("failed to open postgres connection")

	// ErrMigrationsFailed is returned when applying migrations fails.
	ErrMigrationsFailed = errors.New("failed to apply migrations")

	// ErrMigrationsPathMissing is returned when no migrations path is set.
	ErrMigrationsPathMissing = errors.New("migrations path not provided")

	// ErrMigrationsDirNotFound is returned when the migrations path does
	// not exist on disk.
	ErrMigrationsDirNotFound = errors.New("migrations directory not found")
)
