package memory

import (
	"context"

	"prodledger/internal/core/id"
	"prodledger/internal/domain/audit"
)

// AuditLog implements audit.Recorder.
type AuditLog struct {
	s *Store
}

var (
	_ audit.Recorder = (*AuditLog)(nil)
	_ audit.Reader   = (*AuditLog)(nil)
)

// NewAuditLog creates an audit recorder.
func NewAuditLog(s *Store) *AuditLog {
	return &AuditLog{s: s}
}

// Record appends an entry; it is dropped again if the transaction rolls back.
func (a *AuditLog) Record(ctx context.Context, e audit.Entry) error {
	e = audit.Prepare(ctx, e)
	return a.s.write(ctx, "audit.record", func() (func(), error) {
		a.s.audit = append(a.s.audit, e)
		return func() {
			for i := range a.s.audit {
				if a.s.audit[i].ID == e.ID {
					a.s.audit = append(a.s.audit[:i], a.s.audit[i+1:]...)
					return
				}
			}
		}, nil
	})
}

// Entries returns a copy of the committed and in-flight entries.
func (a *AuditLog) Entries() []audit.Entry {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := make([]audit.Entry, len(a.s.audit))
	copy(out, a.s.audit)
	return out
}

// History implements audit.Reader.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	var out []audit.Entry
	for i := len(a.s.audit) - 1; i >= 0; i-- {
		e := a.s.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
