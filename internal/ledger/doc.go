// Package ledger keeps an append-only SQLite history of runs and per-file
// transitions for the status and history commands.
//
// The ledger is an audit trail only. Upload status is always derived from
// file names; nothing in this package is consulted to decide whether a file
// needs uploading, and callers treat ledger write failures as warnings.
package ledger
