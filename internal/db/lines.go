package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/workflow"
)

const lineColumns = "id, order_id, product_id, quantity, price, state, flag, updated_at"

func scanOrderLine(row interface{ Scan(...any) error }) (*models.OrderLine, error) {
	var l models.OrderLine
	err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.Price,
		&l.State, &l.Flag, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertOrderLine writes an order line, replacing any existing row with the
// same id.
func (db *DB) UpsertOrderLine(l *models.OrderLine) error {
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO order_lines (`+lineColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.OrderID, l.ProductID, l.Quantity, l.Price,
			l.State, l.Flag, l.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert order line %s: %w", l.ID, err)
		}
		return nil
	})
}

// GetOrderLine returns a single line by id regardless of flag.
func (db *DB) GetOrderLine(id string) (*models.OrderLine, error) {
	row := db.conn.QueryRow(`SELECT `+lineColumns+` FROM order_lines WHERE id = ?`, id)
	l, err := scanOrderLine(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order line %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order line %s: %w", id, err)
	}
	return l, nil
}

// ListOrderLines returns the lines of one order. Hidden rows (deleted, temp,
// draft) are excluded unless includeHidden is set.
func (db *DB) ListOrderLines(orderID string, includeHidden bool) ([]*models.OrderLine, error) {
	query := `SELECT ` + lineColumns + ` FROM order_lines WHERE order_id = ?`
	args := []any{orderID}
	if !includeHidden {
		query += ` AND flag = ?`
		args = append(args, models.FlagActive)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	var lines []*models.OrderLine
	for rows.Next() {
		l, err := scanOrderLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// AddLocalOrderLine inserts a temp-flagged line under an order.
func (db *DB) AddLocalOrderLine(orderID string, productID int64, quantity, price float64) (*models.OrderLine, error) {
	l := &models.OrderLine{
		ID:        GenerateTempID(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		State:     models.LineNew,
		Flag:      models.FlagTemp,
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.UpsertOrderLine(l); err != nil {
		return nil, err
	}
	return l, nil
}

// ActivateOrderLine re-keys a temp line to its server id and activates it.
func (db *DB) ActivateOrderLine(tempID, serverID string) error {
	if !IsTempID(tempID) {
		return fmt.Errorf("activate order line: %s is not a temp id", tempID)
	}
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.Exec(`UPDATE order_lines SET id = ?, flag = ?, updated_at = ? WHERE id = ?`,
			serverID, models.FlagActive, time.Now().UTC(), tempID)
		if err != nil {
			return fmt.Errorf("re-key order line %s: %w", tempID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("order line %s: %w", tempID, ErrNotFound)
		}

		// Packing counters follow the line id
		if _, err := tx.Exec(`UPDATE packing_counts SET line_id = ? WHERE line_id = ?`,
			serverID, tempID); err != nil {
			return fmt.Errorf("re-key packing count of line %s: %w", tempID, err)
		}

		return tx.Commit()
	})
}

// TransitionOrderLine moves a line to a new workflow state after validating
// against the line machine.
func (db *DB) TransitionOrderLine(id string, to models.LineState) error {
	l, err := db.GetOrderLine(id)
	if err != nil {
		return err
	}
	if err := workflow.Lines().Validate(id, int(l.State), int(to)); err != nil {
		return err
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`UPDATE order_lines SET state = ?, updated_at = ? WHERE id = ?`,
			to, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("transition order line %s: %w", id, err)
		}
		return nil
	})
}

// SetOrderLineFlag changes the activity flag of a line.
func (db *DB) SetOrderLineFlag(id string, flag models.Flag) error {
	return db.withWriteLock(func() error {
		res, err := db.conn.Exec(`UPDATE order_lines SET flag = ?, updated_at = ? WHERE id = ?`,
			flag, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("set order line flag %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("order line %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
