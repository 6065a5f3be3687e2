package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyRunning  = errors.New("already running")
	ErrConfiguration   = errors.New("configuration missing")
	ErrTransferFailed  = errors.New("transfer failed")
	ErrAlbumResolution = errors.New("album resolution failed")
	ErrRenameFailed    = errors.New("checkpoint rename failed")
	ErrAlbumListing    = errors.New("album listing failed")
)

// Scope describes how far a failure propagates.
type Scope int

const (
	// ScopeFile failures are logged at the file boundary; the pass continues
	// and the item is retried on a later pass.
	ScopeFile Scope = iota
	// ScopePass failures abort the current pass; the next scheduled pass retries.
	ScopePass
	// ScopeProcess failures abort the run before any work is attempted.
	ScopeProcess
)

func (s Scope) String() string {
	switch s {
	case ScopeFile:
		return "file"
	case ScopePass:
		return "pass"
	case ScopeProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransferFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the scope it should abort. Unknown errors are
// treated as file-scoped so a single bad item never stops a pass.
func Classify(err error) Scope {
	switch {
	case err == nil:
		return ScopeFile
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrConfiguration):
		return ScopeProcess
	case errors.Is(err, ErrAlbumListing):
		return ScopePass
	default:
		return ScopeFile
	}
}

// Kind returns a short stable label for the error marker, used in logs and the ledger.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyRunning):
		return "already_running"
	case errors.Is(err, ErrConfiguration):
		return "configuration_missing"
	case errors.Is(err, ErrRenameFailed):
		return "rename_failed"
	case errors.Is(err, ErrAlbumResolution):
		return "album_resolution_failed"
	case errors.Is(err, ErrAlbumListing):
		return "album_listing_failed"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	default:
		return "unexpected"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
