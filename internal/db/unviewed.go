package db

import (
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/models"
)

// UnviewedCounts returns the number of active, unseen orders and out-of-stock
// masters. Used for the badge line in status output.
func (db *DB) UnviewedCounts() (orders, stockouts int, err error) {
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM orders WHERE flag = ? AND viewed = 0`,
		models.FlagActive).Scan(&orders)
	if err != nil {
		return 0, 0, fmt.Errorf("count unviewed orders: %w", err)
	}
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM stockouts WHERE flag = ? AND viewed = 0`,
		models.FlagActive).Scan(&stockouts)
	if err != nil {
		return 0, 0, fmt.Errorf("count unviewed stockouts: %w", err)
	}
	return orders, stockouts, nil
}

// MarkViewed flips the viewed bit on an order or stockout master.
func (db *DB) MarkViewed(kind kinds.Kind, id string) error {
	var table string
	switch kind {
	case kinds.Order:
		table = "orders"
	case kinds.StockOut:
		table = "stockouts"
	default:
		return fmt.Errorf("mark viewed: kind %s has no viewed bit", kind)
	}
	return db.withWriteLock(func() error {
		res, err := db.conn.Exec(`UPDATE `+table+` SET viewed = 1, updated_at = ? WHERE id = ?`,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("mark viewed %s %s: %w", kind, id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return nil
	})
}
