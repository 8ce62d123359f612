package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"prodledger/internal/core/id"
	"prodledger/internal/domain/audit"
)

const auditTable = "sys_audit_log"

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// auditRow is the stored form of audit.Entry.
type auditRow struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          *id.ID          `db:"entity_id"`
	Action            string          `db:"action"`
	ActorID           string          `db:"actor_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditLog implements audit.Recorder and audit.Reader on sys_audit_log.
// Bulk-delete entries carry every requested id, so large change sets are
// stored zstd-compressed.
type AuditLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var (
	_ audit.Recorder = (*AuditLog)(nil)
	_ audit.Reader   = (*AuditLog)(nil)
)

// NewAuditLog creates an audit log.
func NewAuditLog(txManager *TxManager) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 8 * 1024,
	}, nil
}

// Record writes an entry in the caller's transaction.
func (a *AuditLog) Record(ctx context.Context, e audit.Entry) error {
	e = audit.Prepare(ctx, e)

	row, err := a.encode(e)
	if err != nil {
		return err
	}

	sql, args, err := Builder().
		Insert(auditTable).
		Columns("id", "entity_type", "entity_id", "action", "actor_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(row.ID, row.EntityType, row.EntityID, row.Action, row.ActorID,
			row.Changes, row.ChangesCompressed, row.CompressionAlgo, e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := a.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (a *AuditLog) encode(e audit.Entry) (auditRow, error) {
	row := auditRow{
		ID:              e.ID,
		EntityType:      e.EntityType,
		Action:          string(e.Action),
		ActorID:         e.ActorID,
		CompressionAlgo: CompressionNone,
	}
	if !id.IsNil(e.EntityID) {
		eid := e.EntityID
		row.EntityID = &eid
	}

	if len(e.Changes) > 0 {
		changes, err := json.Marshal(e.Changes)
		if err != nil {
			return row, fmt.Errorf("marshal changes: %w", err)
		}
		if len(changes) > a.compressThreshold {
			row.ChangesCompressed = a.encoder.EncodeAll(changes, nil)
			row.CompressionAlgo = CompressionZstd
		} else {
			row.Changes = changes
		}
	}
	return row, nil
}

// History returns the newest entries of one entity first.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	sql, args, err := Builder().
		Select("id", "entity_type", "entity_id", "action", "actor_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	rows, err := a.txManager.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var r auditRow
		if err := rows.Scan(&r.ID, &r.EntityType, &r.EntityID, &r.Action, &r.ActorID,
			&r.Changes, &r.ChangesCompressed, &r.CompressionAlgo, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e, err := a.decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *AuditLog) decode(r auditRow) (audit.Entry, error) {
	e := audit.Entry{
		ID:         r.ID,
		EntityType: r.EntityType,
		Action:     audit.Action(r.Action),
		ActorID:    r.ActorID,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if r.EntityID != nil {
		e.EntityID = *r.EntityID
	}

	raw := []byte(r.Changes)
	if r.CompressionAlgo == CompressionZstd && len(r.ChangesCompressed) > 0 {
		decompressed, err := a.decoder.DecodeAll(r.ChangesCompressed, nil)
		if err != nil {
			return e, fmt.Errorf("decompress changes: %w", err)
		}
		raw = decompressed
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &e.Changes); err != nil {
			return e, fmt.Errorf("unmarshal changes: %w", err)
		}
	}
	return e, nil
}
