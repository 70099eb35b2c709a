package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/models"
)

// ErrNotEditable is returned when an overlay write targets an order outside
// the approved window.
var ErrNotEditable = fmt.Errorf("order is not in an editable state")

// WriteOverlay stages an edited copy of an approved order in the overlay
// table. The base row stays untouched until the overlay is merged after a
// successful push. Orders outside the approved window reject overlays.
func (db *DB) WriteOverlay(o *models.Order) error {
	base, err := db.GetOrder(o.ID)
	if err != nil {
		return err
	}
	if !base.State.Approved() {
		return fmt.Errorf("order %s (%s): %w", o.ID, base.State, ErrNotEditable)
	}

	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = base.CreatedAt
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO order_overlays (`+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.CustomerID, o.Number, o.State, o.Flag,
			o.Total, o.Note, boolToInt(o.Viewed), o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("write overlay %s: %w", o.ID, err)
		}
		return nil
	})
}

// GetOverlay returns the staged edit for an order, or nil if none exists.
func (db *DB) GetOverlay(id string) (*models.Order, error) {
	row := db.conn.QueryRow(`SELECT `+orderColumns+` FROM order_overlays WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get overlay %s: %w", id, err)
	}
	return o, nil
}

// MergeOverlay promotes the staged edit into the base row and removes the
// overlay, both in one transaction. Called after the edit was accepted by
// the server.
func (db *DB) MergeOverlay(id string) error {
	overlay, err := db.GetOverlay(id)
	if err != nil {
		return err
	}
	if overlay == nil {
		return fmt.Errorf("overlay %s: %w", id, ErrNotFound)
	}

	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO orders (`+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			overlay.ID, overlay.CustomerID, overlay.Number, overlay.State, overlay.Flag,
			overlay.Total, overlay.Note, boolToInt(overlay.Viewed),
			overlay.CreatedAt, time.Now().UTC()); err != nil {
			return fmt.Errorf("merge overlay %s: %w", id, err)
		}
		if _, err := tx.Exec(`DELETE FROM order_overlays WHERE id = ?`, id); err != nil {
			return fmt.Errorf("clear overlay %s: %w", id, err)
		}
		return tx.Commit()
	})
}

// ClearOverlay discards the staged edit without touching the base row.
func (db *DB) ClearOverlay(id string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`DELETE FROM order_overlays WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("clear overlay %s: %w", id, err)
		}
		return nil
	})
}
