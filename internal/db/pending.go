package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/kinds"
)

// PendingNotification is a push payload parked for later replay because it
// could not be processed when it arrived (mid-sync, or processing failed).
type PendingNotification struct {
	ID         int64
	Payload    string
	ReceivedAt time.Time
}

// AppendPending durably parks a raw push payload for replay.
func (db *DB) AppendPending(payload string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`INSERT INTO pending_notifications (payload, received_at) VALUES (?, ?)`,
			payload, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("append pending notification: %w", err)
		}
		return nil
	})
}

// ListPending returns parked notifications in arrival order.
func (db *DB) ListPending() ([]*PendingNotification, error) {
	rows, err := db.conn.Query(`SELECT id, payload, received_at FROM pending_notifications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()

	var out []*PendingNotification
	for rows.Next() {
		var p PendingNotification
		if err := rows.Scan(&p.ID, &p.Payload, &p.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan pending notification: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// DeletePending removes one parked notification after successful replay.
func (db *DB) DeletePending(id int64) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`DELETE FROM pending_notifications WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete pending notification %d: %w", id, err)
		}
		return nil
	})
}

// CountPending returns the number of parked notifications.
func (db *DB) CountPending() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM pending_notifications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending notifications: %w", err)
	}
	return n, nil
}

// TouchDedupKey records that a (kind, id) pair was admitted, returning the
// previous timestamp if one existed. Durable so the admission window
// survives restart.
func (db *DB) TouchDedupKey(kind kinds.Kind, entityID string, now time.Time) (time.Time, bool, error) {
	var prev time.Time
	var had bool
	err := db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		var seen time.Time
		err = tx.QueryRow(`SELECT seen_at FROM dedup_keys WHERE kind = ? AND entity_id = ?`,
			kind, entityID).Scan(&seen)
		switch {
		case err == nil:
			prev, had = seen, true
		case errors.Is(err, sql.ErrNoRows):
			// First sighting of this key.
		default:
			return fmt.Errorf("read dedup key: %w", err)
		}

		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO dedup_keys (kind, entity_id, seen_at)
			VALUES (?, ?, ?)`,
			kind, entityID, now); err != nil {
			return fmt.Errorf("touch dedup key: %w", err)
		}
		return tx.Commit()
	})
	return prev, had, err
}

// DeleteDedupKey removes one admission record, reporting whether it existed.
func (db *DB) DeleteDedupKey(kind kinds.Kind, entityID string) (bool, error) {
	var removed bool
	err := db.withWriteLock(func() error {
		res, err := db.conn.Exec(`DELETE FROM dedup_keys WHERE kind = ? AND entity_id = ?`,
			kind, entityID)
		if err != nil {
			return fmt.Errorf("delete dedup key: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

// SweepDedupKeys deletes admission records older than cutoff and returns how
// many were removed.
func (db *DB) SweepDedupKeys(cutoff time.Time) (int64, error) {
	var n int64
	err := db.withWriteLock(func() error {
		res, err := db.conn.Exec(`DELETE FROM dedup_keys WHERE seen_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("sweep dedup keys: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// CountDedupKeys returns the size of the admission table.
func (db *DB) CountDedupKeys() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM dedup_keys`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dedup keys: %w", err)
	}
	return n, nil
}
