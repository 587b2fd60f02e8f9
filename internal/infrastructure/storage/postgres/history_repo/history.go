// Package history_repo provides the PostgreSQL implementation of the
// status audit trail.
package history_repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/history"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const historyTable = "hist_entries"

// compressThreshold is the payload size above which the field diff is
// stored zstd-compressed. Small payloads stay as plain JSON since the
// frame overhead would outweigh the savings.
const compressThreshold = 512

// zstdMagic is the frame header every zstd stream starts with; it lets
// reads distinguish compressed payloads from plain JSON without a flag column.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Compile-time check that HistoryRepo implements history.Repository.
var _ history.Repository = (*HistoryRepo)(nil)

// HistoryRepo implements history.Repository.
// Entries are insert-only; there is no update or delete path.
type HistoryRepo struct {
	txManager *postgres.TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewHistoryRepo creates a new history repository.
func NewHistoryRepo(txManager *postgres.TxManager) (*HistoryRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &HistoryRepo{
		txManager: txManager,
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

// Append inserts one entry.
func (r *HistoryRepo) Append(ctx context.Context, entry history.Entry) error {
	changes, err := r.encodeChanges(entry.Changes)
	if err != nil {
		return err
	}

	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert(historyTable).
		Columns("id", "entity_type", "entity_id", "old_status", "new_status",
			"changed_by", "note", "changes", "changed_at").
		Values(entry.ID, entry.EntityType, entry.EntityID, entry.OldStatus,
			entry.NewStatus, entry.ChangedBy, entry.Note, changes, entry.ChangedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	return nil
}

// ListByEntity returns entries for one document, oldest first.
// UUIDv7 IDs are time-ordered, so (changed_at, id) gives a stable total
// order even when two transitions land in the same microsecond.
func (r *HistoryRepo) ListByEntity(ctx context.Context, entityType string, entityID id.ID) ([]history.Entry, error) {
	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "entity_type", "entity_id", "old_status", "new_status",
			"changed_by", "note", "changes", "changed_at").
		From(historyTable).
		Where(squirrel.Eq{"entity_type": entityType}).
		Where(squirrel.Eq{"entity_id": entityID}).
		OrderBy("changed_at ASC", "id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	entries := make([]history.Entry, 0)
	for rows.Next() {
		var entry history.Entry
		var changes []byte
		if err := rows.Scan(&entry.ID, &entry.EntityType, &entry.EntityID,
			&entry.OldStatus, &entry.NewStatus, &entry.ChangedBy, &entry.Note,
			&changes, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}

		entry.Changes, err = r.decodeChanges(changes)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}

	return entries, nil
}

// encodeChanges serializes the field diff, compressing large payloads.
func (r *HistoryRepo) encodeChanges(changes map[string]any) ([]byte, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("marshal changes: %w", err)
	}

	if len(raw) <= compressThreshold {
		return raw, nil
	}
	return r.encoder.EncodeAll(raw, nil), nil
}

// decodeChanges reverses encodeChanges, detecting compression by frame magic.
func (r *HistoryRepo) decodeChanges(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}

	if bytes.HasPrefix(data, zstdMagic) {
		raw, err := r.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress changes: %w", err)
		}
		data = raw
	}

	var changes map[string]any
	if err := json.Unmarshal(data, &changes); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}

	return changes, nil
}
