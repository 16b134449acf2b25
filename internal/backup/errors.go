package backup

import "errors"

// Common errors returned by the backup package
var (
	// ErrNotFound is returned when an artifact does not exist in the sink.
	ErrNotFound = errors.New("backup artifact not found")

	// ErrInvalidName is returned for names that are not backup artifacts.
	ErrInvalidName = errors.New("invalid backup artifact name")

	// ErrNoBackups is returned by Latest when the sink is empty.
	ErrNoBackups = errors.New("no backups available")

	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("invalid backup configuration")
)
