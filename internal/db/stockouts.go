package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/workflow"
)

const stockOutColumns = "id, warehouse_id, reporter_id, note, flag, viewed, created_at, updated_at"
const stockOutLineColumns = "id, stockout_id, product_id, quantity, state, flag, updated_at"

func scanStockOut(row interface{ Scan(...any) error }) (*models.StockOut, error) {
	var s models.StockOut
	var viewed int
	err := row.Scan(&s.ID, &s.WarehouseID, &s.ReporterID, &s.Note, &s.Flag,
		&viewed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Viewed = viewed != 0
	return &s, nil
}

func scanStockOutLine(row interface{ Scan(...any) error }) (*models.StockOutLine, error) {
	var l models.StockOutLine
	err := row.Scan(&l.ID, &l.StockOutID, &l.ProductID, &l.Quantity,
		&l.State, &l.Flag, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertStockOut writes an out-of-stock master row.
func (db *DB) UpsertStockOut(s *models.StockOut) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO stockouts (`+stockOutColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.WarehouseID, s.ReporterID, s.Note, s.Flag,
			boolToInt(s.Viewed), s.CreatedAt, s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert stockout %s: %w", s.ID, err)
		}
		return nil
	})
}

// GetStockOut returns a master by id regardless of flag.
func (db *DB) GetStockOut(id string) (*models.StockOut, error) {
	row := db.conn.QueryRow(`SELECT `+stockOutColumns+` FROM stockouts WHERE id = ?`, id)
	s, err := scanStockOut(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stockout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stockout %s: %w", id, err)
	}
	return s, nil
}

// ListStockOuts returns active masters, newest first.
func (db *DB) ListStockOuts(includeHidden bool) ([]*models.StockOut, error) {
	query := `SELECT ` + stockOutColumns + ` FROM stockouts`
	var args []any
	if !includeHidden {
		query += ` WHERE flag = ?`
		args = append(args, models.FlagActive)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stockouts: %w", err)
	}
	defer rows.Close()

	var out []*models.StockOut
	for rows.Next() {
		s, err := scanStockOut(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stockout: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertStockOutLine writes a sub line. Subs whose master has not been
// pulled yet are stored anyway and backfilled into joined views once the
// master arrives.
func (db *DB) UpsertStockOutLine(l *models.StockOutLine) error {
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO stockout_lines (`+stockOutLineColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.StockOutID, l.ProductID, l.Quantity, l.State, l.Flag, l.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert stockout line %s: %w", l.ID, err)
		}
		return nil
	})
}

// GetStockOutLine returns a sub line by id regardless of flag.
func (db *DB) GetStockOutLine(id string) (*models.StockOutLine, error) {
	row := db.conn.QueryRow(`SELECT `+stockOutLineColumns+` FROM stockout_lines WHERE id = ?`, id)
	l, err := scanStockOutLine(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stockout line %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stockout line %s: %w", id, err)
	}
	return l, nil
}

// ListStockOutJoined returns active sub lines joined to their masters.
// Orphans (sub present, master missing) are excluded from the default view
// but kept in the table; pass includeOrphans to see them with a nil Master.
func (db *DB) ListStockOutJoined(includeOrphans bool) ([]*models.StockOutJoined, error) {
	rows, err := db.conn.Query(`
		SELECT l.id, l.stockout_id, l.product_id, l.quantity, l.state, l.flag, l.updated_at,
		       m.id, m.warehouse_id, m.reporter_id, m.note, m.flag, m.viewed, m.created_at, m.updated_at
		FROM stockout_lines l
		LEFT JOIN stockouts m ON m.id = l.stockout_id
		WHERE l.flag = ?
		ORDER BY l.updated_at DESC, l.id`, models.FlagActive)
	if err != nil {
		return nil, fmt.Errorf("list stockout lines joined: %w", err)
	}
	defer rows.Close()

	var out []*models.StockOutJoined
	for rows.Next() {
		var j models.StockOutJoined
		var mID sql.NullString
		var mWarehouse, mReporter sql.NullInt64
		var mNote sql.NullString
		var mFlag, mViewed sql.NullInt64
		var mCreated, mUpdated sql.NullTime

		err := rows.Scan(&j.Line.ID, &j.Line.StockOutID, &j.Line.ProductID,
			&j.Line.Quantity, &j.Line.State, &j.Line.Flag, &j.Line.UpdatedAt,
			&mID, &mWarehouse, &mReporter, &mNote, &mFlag, &mViewed, &mCreated, &mUpdated)
		if err != nil {
			return nil, fmt.Errorf("scan stockout join: %w", err)
		}

		if mID.Valid {
			j.Master = &models.StockOut{
				ID:          mID.String,
				WarehouseID: mWarehouse.Int64,
				ReporterID:  mReporter.Int64,
				Note:        mNote.String,
				Flag:        models.Flag(mFlag.Int64),
				Viewed:      mViewed.Int64 != 0,
				CreatedAt:   mCreated.Time,
				UpdatedAt:   mUpdated.Time,
			}
		} else if !includeOrphans {
			continue
		}
		out = append(out, &j)
	}
	return out, rows.Err()
}

// TransitionStockOutLine moves a sub line through the line machine.
func (db *DB) TransitionStockOutLine(id string, to models.LineState) error {
	l, err := db.GetStockOutLine(id)
	if err != nil {
		return err
	}
	if err := workflow.Lines().Validate(id, int(l.State), int(to)); err != nil {
		return err
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`UPDATE stockout_lines SET state = ?, updated_at = ? WHERE id = ?`,
			to, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("transition stockout line %s: %w", id, err)
		}
		return nil
	})
}

// SetStockOutFlag changes a master's activity flag.
func (db *DB) SetStockOutFlag(id string, flag models.Flag) error {
	return db.withWriteLock(func() error {
		res, err := db.conn.Exec(`UPDATE stockouts SET flag = ?, updated_at = ? WHERE id = ?`,
			flag, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("set stockout flag %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("stockout %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
