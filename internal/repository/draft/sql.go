package draft

import (
	"context"
	"fmt"

	"github.com/debemdeboas/composer/internal/db"
	"github.com/debemdeboas/composer/internal/model"
	"github.com/debemdeboas/composer/internal/util/compression"
)

// SQLStore keeps slots as rows of the draft_slots table. Body slots are compressed;
// the title is stored as-is.
type SQLStore struct {
	db         db.Db
	compressor compression.Compressor
}

func NewSQLStore(database db.Db, compressor compression.Compressor) *SQLStore {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &SQLStore{
		db:         database,
		compressor: compressor,
	}
}

func (r *SQLStore) Load(ctx context.Context, id model.DraftID) (model.Draft, bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slot, value FROM draft_slots WHERE draft_id = ?`, string(id))
	if err != nil {
		return model.Draft{}, false, persistErr("load", id, err)
	}
	defer rows.Close()

	var s slots
	for rows.Next() {
		var slot string
		var value []byte
		if err := rows.Scan(&slot, &value); err != nil {
			return model.Draft{}, false, persistErr("load", id, fmt.Errorf("error scanning slot: %w", err))
		}
		if Slot(slot) != SlotTitle && len(value) > 0 {
			value, err = r.compressor.Decompress(value)
			if err != nil {
				return model.Draft{}, false, persistErr("load", id, fmt.Errorf("error decompressing %s slot: %w", slot, err))
			}
		}
		s.set(Slot(slot), value)
	}
	if err := rows.Err(); err != nil {
		return model.Draft{}, false, persistErr("load", id, err)
	}

	d, found := s.draft(id)
	return d, found, nil
}

func (r *SQLStore) Save(ctx context.Context, id model.DraftID, patch Patch) error {
	if patch.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return persistErr("save", id, err)
	}
	defer tx.Rollback()

	for slot, value := range patch.values() {
		if slot != SlotTitle && len(value) > 0 {
			value, err = r.compressor.Compress(value)
			if err != nil {
				return persistErr("save", id, fmt.Errorf("error compressing %s slot: %w", slot, err))
			}
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO draft_slots (draft_id, slot, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (draft_id, slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			string(id), string(slot), value)
		if err != nil {
			return persistErr("save", id, err)
		}
	}

	return persistErr("save", id, tx.Commit())
}

func (r *SQLStore) Clear(ctx context.Context, id model.DraftID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM draft_slots WHERE draft_id = ?`, string(id))
	return persistErr("clear", id, err)
}
