// Package notifications delivers run events to ntfy.
//
// NewService returns a no-op Service when no topic is configured, so callers
// publish unconditionally. Events cover finished runs, run failures and stale
// runs that may have left an orphan upload on the remote service.
package notifications
