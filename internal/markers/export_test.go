package markers

import "time"

// SetClock overrides the time source used for payloads and archive names.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// SetAliveFunc overrides the process liveness check.
func (s *Store) SetAliveFunc(alive func(int) bool) { s.alive = alive }

// SetPID overrides the pid recorded in and compared against the liveness marker.
func (s *Store) SetPID(pid int) { s.pid = pid }
