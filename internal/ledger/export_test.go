package ledger

import "context"

// SetSchemaVersion rewrites the stored schema version.
func (l *Ledger) SetSchemaVersion(version int) error {
	_, err := l.exec(context.Background(), "UPDATE schema_version SET version = ?", version)
	return err
}
