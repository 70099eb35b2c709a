package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/models"
)

// SetPackedCount writes the fulfilled quantity for a line. The side table is
// sparse: lines with no packing activity have no row.
func (db *DB) SetPackedCount(lineID string, packed float64) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO packing_counts (line_id, packed, updated_at)
			VALUES (?, ?, ?)`,
			lineID, packed, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("set packed count %s: %w", lineID, err)
		}
		return nil
	})
}

// AddPackedCount increments the fulfilled quantity for a line, creating the
// row at delta if absent.
func (db *DB) AddPackedCount(lineID string, delta float64) (float64, error) {
	var total float64
	err := db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		var current float64
		err = tx.QueryRow(`SELECT packed FROM packing_counts WHERE line_id = ?`, lineID).Scan(&current)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read packed count %s: %w", lineID, err)
		}

		total = current + delta
		if total < 0 {
			total = 0
		}
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO packing_counts (line_id, packed, updated_at)
			VALUES (?, ?, ?)`,
			lineID, total, time.Now().UTC()); err != nil {
			return fmt.Errorf("write packed count %s: %w", lineID, err)
		}
		return tx.Commit()
	})
	return total, err
}

// GetPackedCount returns the packing entry for a line, or nil if none exists.
func (db *DB) GetPackedCount(lineID string) (*models.PackingCount, error) {
	var p models.PackingCount
	err := db.conn.QueryRow(`SELECT line_id, packed, updated_at FROM packing_counts WHERE line_id = ?`,
		lineID).Scan(&p.LineID, &p.Packed, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get packed count %s: %w", lineID, err)
	}
	return &p, nil
}

// ListPackedCounts returns all packing entries for the lines of one order.
func (db *DB) ListPackedCounts(orderID string) ([]*models.PackingCount, error) {
	rows, err := db.conn.Query(`
		SELECT p.line_id, p.packed, p.updated_at
		FROM packing_counts p
		JOIN order_lines l ON l.id = p.line_id
		WHERE l.order_id = ?
		ORDER BY p.line_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list packed counts: %w", err)
	}
	defer rows.Close()

	var out []*models.PackingCount
	for rows.Next() {
		var p models.PackingCount
		if err := rows.Scan(&p.LineID, &p.Packed, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan packed count: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
