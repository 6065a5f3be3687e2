package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"uploadr/internal/fileutil"
)

// Status is the upload state derived from a file name.
type Status int

const (
	StatusPending Status = iota
	StatusUploaded
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUploaded:
		return "uploaded"
	default:
		return "unknown"
	}
}

// idSeparator splits the embedded remote id from the original file name.
const idSeparator = "_"

// Naming applies the reserved-prefix convention for uploaded files.
type Naming struct {
	Prefix string
}

// Status returns the upload status encoded in a base name.
func (n Naming) Status(name string) Status {
	if _, _, ok := n.Parse(name); ok {
		return StatusUploaded
	}
	return StatusPending
}

// HasPrefix reports whether name carries the reserved prefix, whether or not it
// is a well-formed checkpoint name.
func (n Naming) HasPrefix(name string) bool {
	return n.Prefix != "" && strings.HasPrefix(name, n.Prefix)
}

// Parse extracts the remote id and original name from a checkpoint name.
func (n Naming) Parse(name string) (remoteID, original string, ok bool) {
	name = filepath.Base(name)
	if !n.HasPrefix(name) {
		return "", "", false
	}
	rest := strings.TrimPrefix(name, n.Prefix)
	id, original, found := strings.Cut(rest, idSeparator)
	if !found || id == "" || original == "" {
		return "", "", false
	}
	return id, original, true
}

// CheckpointName builds the Uploaded name for an original base name.
func (n Naming) CheckpointName(name, remoteID string) (string, error) {
	if err := validateRemoteID(remoteID); err != nil {
		return "", err
	}
	if n.Prefix == "" {
		return "", errors.New("processed prefix is empty")
	}
	return n.Prefix + remoteID + idSeparator + filepath.Base(name), nil
}

// Commit renames path to its checkpoint name in the same directory. The rename
// never replaces an existing file and is followed by a directory sync.
func (n Naming) Commit(path, remoteID string) (string, error) {
	name, err := n.CheckpointName(filepath.Base(path), remoteID)
	if err != nil {
		return "", err
	}
	target := filepath.Join(filepath.Dir(path), name)
	if err := fileutil.RenameNoReplace(path, target); err != nil {
		return "", fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return target, nil
}

func validateRemoteID(id string) error {
	if id == "" {
		return errors.New("remote id is empty")
	}
	if strings.ContainsAny(id, idSeparator+`/\`) {
		return fmt.Errorf("remote id %q contains reserved characters", id)
	}
	return nil
}

// Extension returns the lower-cased suffix after the last '.', or "" when the
// name has no dot.
func Extension(name string) string {
	name = filepath.Base(name)
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
