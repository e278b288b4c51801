package audit

import (
	"context"

	"github.com/mcpower/mcpower-gate/internal/domain/audit"
)

// TeeStore fans Append/Flush/Close out to a primary store and zero or more
// mirrors, so a secondary sink (e.g. the sqlite query mirror) can be added
// without displacing the append-only store the wrapper treats as the
// system of record. A mirror error is returned alongside the primary's so
// the caller can log it, but the primary result always reflects whether
// the authoritative write succeeded.
type TeeStore struct {
	primary audit.AuditStore
	mirrors []audit.AuditStore
}

// NewTeeStore wraps primary with mirrors. Passing no mirrors returns
// primary unchanged.
func NewTeeStore(primary audit.AuditStore, mirrors ...audit.AuditStore) audit.AuditStore {
	if len(mirrors) == 0 {
		return primary
	}
	return &TeeStore{primary: primary, mirrors: mirrors}
}

func (t *TeeStore) Append(ctx context.Context, records ...audit.AuditRecord) error {
	err := t.primary.Append(ctx, records...)
	for _, m := range t.mirrors {
		_ = m.Append(ctx, records...)
	}
	return err
}

func (t *TeeStore) Flush(ctx context.Context) error {
	err := t.primary.Flush(ctx)
	for _, m := range t.mirrors {
		_ = m.Flush(ctx)
	}
	return err
}

func (t *TeeStore) Close() error {
	err := t.primary.Close()
	for _, m := range t.mirrors {
		_ = m.Close()
	}
	return err
}

var _ audit.AuditStore = (*TeeStore)(nil)
