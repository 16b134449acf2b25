// Package job runs an action periodically in the background.
//
// A Runner invokes its action, then waits Interval after a success or
// RetryDelay after a failure, forever. Failures and panics never end the
// loop. Stop cancels the loop between cycles and never aborts an action
// already in flight; it waits only as long as the caller's context allows,
// so a slow action cannot hold up process shutdown.
package job
