package sync

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/fieldops/fieldsync/internal/kinds"
	_ "modernc.org/sqlite"
)

func TestNormalizeRecordMapsServerFields(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 42,
		"customerId": 7,
		"state": 1,
		"flag": 1,
		"note": "hello",
		"unknownField": "dropped"
	}`)

	rec, err := normalizeRecord(kinds.Order, raw)
	if err != nil {
		t.Fatalf("normalizeRecord: %v", err)
	}

	// Numeric ids become strings, matching the TEXT key columns
	if rec["id"] != "42" {
		t.Errorf("id = %v (%T), want \"42\"", rec["id"], rec["id"])
	}
	if rec["customer_id"] != float64(7) {
		t.Errorf("customer_id = %v, want 7", rec["customer_id"])
	}
	if _, ok := rec["unknownField"]; ok {
		t.Error("unknown server field was not dropped")
	}
	if _, ok := rec["unknown_field"]; ok {
		t.Error("unknown server field leaked through mapping")
	}
}

func TestNormalizeRecordSnakeCaseInput(t *testing.T) {
	raw := json.RawMessage(`{"id": "sol-1", "stockout_id": 9, "product_id": 3}`)

	rec, err := normalizeRecord(kinds.StockOutLine, raw)
	if err != nil {
		t.Fatalf("normalizeRecord: %v", err)
	}
	if rec["id"] != "sol-1" {
		t.Errorf("id = %v, want sol-1", rec["id"])
	}
	if rec["stockout_id"] != "9" {
		t.Errorf("stockout_id = %v, want \"9\"", rec["stockout_id"])
	}
}

func TestBuildInsertDeterministic(t *testing.T) {
	rec := Record{"id": "ord-1", "note": "x", "customer_id": 1}

	q1, _ := buildInsert("orders", rec)
	q2, _ := buildInsert("orders", rec)
	if q1 != q2 {
		t.Errorf("buildInsert not deterministic:\n%s\n%s", q1, q2)
	}

	want := "INSERT OR REPLACE INTO orders (customer_id, id, note) VALUES (?, ?, ?)"
	if q1 != want {
		t.Errorf("query = %q, want %q", q1, want)
	}
}

func TestBuildInsertExecutes(t *testing.T) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite3: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(`CREATE TABLE orders (
		id TEXT PRIMARY KEY, customer_id INTEGER, note TEXT, state INTEGER DEFAULT 0
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	rec := Record{"id": "ord-1", "customer_id": int64(5), "note": "first"}
	query, args := buildInsert("orders", rec)
	if _, err := conn.Exec(query, args...); err != nil {
		t.Fatalf("exec insert: %v", err)
	}

	// Replay with changed fields must replace the row
	rec["note"] = "second"
	query, args = buildInsert("orders", rec)
	if _, err := conn.Exec(query, args...); err != nil {
		t.Fatalf("exec replay: %v", err)
	}

	var count int
	var note string
	if err := conn.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := conn.QueryRow(`SELECT note FROM orders WHERE id = 'ord-1'`).Scan(&note); err != nil {
		t.Fatalf("select: %v", err)
	}
	if count != 1 || note != "second" {
		t.Errorf("count = %d, note = %q; want 1, \"second\"", count, note)
	}
}
