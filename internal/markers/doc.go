// Package markers persists the run-state breadcrumbs that make an upload run
// observable after a crash.
//
// Three independent files live in the marker directory: running (a run is in
// progress), inflight (exactly one upload call is outstanding; payload is the
// file path) and shutdown (a termination signal was observed; payload is the
// signal name). Existence is the signal. Contents are informational and every
// write goes through an atomic temp-file rename.
package markers
