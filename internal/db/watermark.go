package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/kinds"
)

// Watermark tracks pull progress for one entity kind.
type Watermark struct {
	Kind         kinds.Kind
	UpdatedSince time.Time
	LastSyncAt   time.Time
}

// GetWatermark returns the pull watermark for a kind. A kind never synced
// returns a zero UpdatedSince, which pulls everything.
func (db *DB) GetWatermark(kind kinds.Kind) (*Watermark, error) {
	var w Watermark
	w.Kind = kind
	var since, last sql.NullTime
	err := db.conn.QueryRow(`SELECT updated_since, last_sync_at FROM sync_watermarks WHERE kind = ?`,
		kind).Scan(&since, &last)
	if err == sql.ErrNoRows {
		return &w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark %s: %w", kind, err)
	}
	if since.Valid {
		w.UpdatedSince = since.Time
	}
	if last.Valid {
		w.LastSyncAt = last.Time
	}
	return &w, nil
}

// SetWatermark advances the pull watermark for a kind. The watermark only
// moves after a fully applied page so a crash replays rather than skips.
func (db *DB) SetWatermark(kind kinds.Kind, updatedSince time.Time) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO sync_watermarks (kind, updated_since, last_sync_at)
			VALUES (?, ?, ?)`,
			kind, updatedSince, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("set watermark %s: %w", kind, err)
		}
		return nil
	})
}

// ResetWatermark clears the watermark so the next pull starts from scratch.
func (db *DB) ResetWatermark(kind kinds.Kind) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`DELETE FROM sync_watermarks WHERE kind = ?`, kind)
		if err != nil {
			return fmt.Errorf("reset watermark %s: %w", kind, err)
		}
		return nil
	})
}
