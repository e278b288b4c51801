package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/mcpower/mcpower-gate/internal/domain/audit"
)

// StdoutStore writes one JSON Lines record per Append call to w, for the
// "stdout" form of audit.output -- the same newline-delimited-JSON shape
// FileAuditStore persists to disk, without rotation or retention since
// stdout has neither.
type StdoutStore struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdoutStore wraps w (typically os.Stdout or os.Stderr) as an
// audit.AuditStore.
func NewStdoutStore(w io.Writer) *StdoutStore {
	return &StdoutStore{w: w}
}

func (s *StdoutStore) Append(_ context.Context, records ...audit.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *StdoutStore) Flush(_ context.Context) error { return nil }
func (s *StdoutStore) Close() error                  { return nil }

var _ audit.AuditStore = (*StdoutStore)(nil)
