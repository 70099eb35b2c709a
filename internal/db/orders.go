package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/workflow"
)

// ErrNotFound is returned when a row does not exist in the replica.
var ErrNotFound = errors.New("not found")

const orderColumns = "id, customer_id, number, state, flag, total, note, viewed, created_at, updated_at"

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var o models.Order
	var viewed int
	err := row.Scan(&o.ID, &o.CustomerID, &o.Number, &o.State, &o.Flag,
		&o.Total, &o.Note, &viewed, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Viewed = viewed != 0
	return &o, nil
}

// UpsertOrder writes an order row, replacing any existing row with the same
// id. UpdatedAt is stamped with the local clock if zero.
func (db *DB) UpsertOrder(o *models.Order) error {
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = o.UpdatedAt
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO orders (`+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.CustomerID, o.Number, o.State, o.Flag,
			o.Total, o.Note, boolToInt(o.Viewed), o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert order %s: %w", o.ID, err)
		}
		return nil
	})
}

// GetOrder returns a single order by id regardless of flag.
func (db *DB) GetOrder(id string) (*models.Order, error) {
	row := db.conn.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// OrderFilter narrows ListOrders. The zero value lists active rows only:
// deleted, temp and draft rows are hidden unless IncludeHidden is set.
type OrderFilter struct {
	State         *models.OrderState
	IncludeHidden bool
	UnviewedOnly  bool
}

// ListOrders returns orders matching the filter, newest first.
func (db *DB) ListOrders(filter OrderFilter) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	var args []any

	if !filter.IncludeHidden {
		query += ` AND flag = ?`
		args = append(args, models.FlagActive)
	}
	if filter.State != nil {
		query += ` AND state = ?`
		args = append(args, *filter.State)
	}
	if filter.UnviewedOnly {
		query += ` AND viewed = 0`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreateLocalOrder inserts a new optimistic order with a temp placeholder id
// and the temp flag. The row stays hidden from default listings until the
// first successful push activates it with a server id.
func (db *DB) CreateLocalOrder(customerID int64, note string) (*models.Order, error) {
	now := time.Now().UTC()
	o := &models.Order{
		ID:         GenerateTempID(),
		CustomerID: customerID,
		State:      models.OrderNew,
		Flag:       models.FlagTemp,
		Note:       note,
		Viewed:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.UpsertOrder(o); err != nil {
		return nil, err
	}
	return o, nil
}

// ActivateOrder re-keys a temp order to its server-assigned id and flips its
// flag to active. Owned lines are re-pointed at the new id in the same
// transaction so a crash cannot leave the replica half re-keyed.
func (db *DB) ActivateOrder(tempID, serverID string) error {
	if !IsTempID(tempID) {
		return fmt.Errorf("activate order: %s is not a temp id", tempID)
	}
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.Exec(`UPDATE orders SET id = ?, flag = ?, updated_at = ? WHERE id = ?`,
			serverID, models.FlagActive, time.Now().UTC(), tempID)
		if err != nil {
			return fmt.Errorf("re-key order %s: %w", tempID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("order %s: %w", tempID, ErrNotFound)
		}

		if _, err := tx.Exec(`UPDATE order_lines SET order_id = ? WHERE order_id = ?`,
			serverID, tempID); err != nil {
			return fmt.Errorf("re-key lines of order %s: %w", tempID, err)
		}

		// Overlay rows are keyed by order id too
		if _, err := tx.Exec(`UPDATE order_overlays SET id = ? WHERE id = ?`,
			serverID, tempID); err != nil {
			return fmt.Errorf("re-key overlay of order %s: %w", tempID, err)
		}

		return tx.Commit()
	})
}

// SetOrderFlag changes the activity flag of an order. Deletion is a flag
// write, never a physical DELETE.
func (db *DB) SetOrderFlag(id string, flag models.Flag) error {
	return db.withWriteLock(func() error {
		res, err := db.conn.Exec(`UPDATE orders SET flag = ?, updated_at = ? WHERE id = ?`,
			flag, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("set order flag %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// TransitionOrder moves an order to a new workflow state after validating
// the transition against the approval machine. Terminal transitions cascade
// to owned lines: rejection and cancellation tombstone them, completion
// stamps their updated_at so the next push picks them up.
func (db *DB) TransitionOrder(id string, to models.OrderState) error {
	o, err := db.GetOrder(id)
	if err != nil {
		return err
	}
	if err := workflow.Orders().Validate(id, int(o.State), int(to)); err != nil {
		return err
	}

	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		now := time.Now().UTC()
		if _, err := tx.Exec(`UPDATE orders SET state = ?, updated_at = ? WHERE id = ?`,
			to, now, id); err != nil {
			return fmt.Errorf("transition order %s: %w", id, err)
		}

		switch to {
		case models.OrderRejected, models.OrderCancelled:
			if _, err := tx.Exec(`UPDATE order_lines SET flag = ?, updated_at = ? WHERE order_id = ?`,
				models.FlagDeleted, now, id); err != nil {
				return fmt.Errorf("tombstone lines of order %s: %w", id, err)
			}
		case models.OrderCompleted:
			if _, err := tx.Exec(`UPDATE order_lines SET updated_at = ? WHERE order_id = ?`,
				now, id); err != nil {
				return fmt.Errorf("stamp lines of order %s: %w", id, err)
			}
		}

		// Leaving the approved window invalidates any pending overlay.
		if !to.Approved() {
			if _, err := tx.Exec(`DELETE FROM order_overlays WHERE id = ?`, id); err != nil {
				return fmt.Errorf("clear overlay of order %s: %w", id, err)
			}
		}

		return tx.Commit()
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
