// Package backup takes periodic snapshots of named data sections and keeps
// the most recent ones in a Sink.
//
// A snapshot is always written, even when some sections could not be
// fetched: failed sections are stored as empty arrays and the failures are
// recorded in the snapshot's error field, leaving an audit trail of every
// attempt. Only a failure to persist is reported back to the caller.
//
// Backup.Run has the signature of a job.Action, so a job.Runner drives it.
package backup
