// Package audit records who changed which event.
package audit

import (
	"context"
	"time"

	appctx "prodledger/internal/core/context"
	"prodledger/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate     Action = "create"
	ActionDelete     Action = "delete"
	ActionReplace    Action = "replace"
	ActionBulkDelete Action = "bulk_delete"
	ActionCorrect    Action = "correct"
)

// Entry is one audit record. Changes is serialized by the store.
type Entry struct {
	ID         id.ID          `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   id.ID          `json:"entityId"`
	Action     Action         `json:"action"`
	ActorID    string         `json:"actorId"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Recorder persists audit entries. Called inside the business transaction,
// so an audit failure rolls the change back.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Reader returns the history of one entity, newest first.
type Reader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Prepare fills ID, actor and timestamp from ctx where unset.
func Prepare(ctx context.Context, e Entry) Entry {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	if e.ActorID == "" {
		e.ActorID = appctx.GetActorID(ctx)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// EnrichCreatedBy sets *createdBy from the context actor if it is empty.
func EnrichCreatedBy(ctx context.Context, createdBy *string) {
	if createdBy == nil || *createdBy != "" {
		return
	}
	*createdBy = appctx.GetActorID(ctx)
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }
