package db

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/workflow"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	store, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenWithoutInit(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected error opening uninitialized replica")
	}
}

func TestUpsertOrderIdempotent(t *testing.T) {
	store := testDB(t)

	o := &models.Order{
		ID:         "ord-1",
		CustomerID: 7,
		State:      models.OrderNew,
		Flag:       models.FlagActive,
		Note:       "first",
	}
	if err := store.UpsertOrder(o); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}
	// Same row again must replace, not duplicate or fail
	o.Note = "second"
	if err := store.UpsertOrder(o); err != nil {
		t.Fatalf("UpsertOrder replay: %v", err)
	}

	got, err := store.GetOrder("ord-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Note != "second" {
		t.Errorf("Note = %q, want %q", got.Note, "second")
	}

	orders, err := store.ListOrders(OrderFilter{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("len(orders) = %d, want 1", len(orders))
	}
}

func TestListOrdersFlagFiltering(t *testing.T) {
	store := testDB(t)

	flags := map[string]models.Flag{
		"ord-active":  models.FlagActive,
		"ord-deleted": models.FlagDeleted,
		"ord-temp":    models.FlagTemp,
		"ord-draft":   models.FlagDraft,
	}
	for id, flag := range flags {
		if err := store.UpsertOrder(&models.Order{ID: id, CustomerID: 1, Flag: flag}); err != nil {
			t.Fatalf("UpsertOrder(%s): %v", id, err)
		}
	}

	visible, err := store.ListOrders(OrderFilter{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != "ord-active" {
		t.Errorf("default listing = %v, want only ord-active", ids(visible))
	}

	all, err := store.ListOrders(OrderFilter{IncludeHidden: true})
	if err != nil {
		t.Fatalf("ListOrders all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("len(all) = %d, want 4", len(all))
	}
}

func ids(orders []*models.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestCreateAndActivateOrder(t *testing.T) {
	store := testDB(t)

	o, err := store.CreateLocalOrder(42, "urgent")
	if err != nil {
		t.Fatalf("CreateLocalOrder: %v", err)
	}
	if !IsTempID(o.ID) {
		t.Fatalf("expected temp id, got %q", o.ID)
	}
	if o.Flag != models.FlagTemp {
		t.Fatalf("Flag = %v, want temp", o.Flag)
	}

	line, err := store.AddLocalOrderLine(o.ID, 99, 3, 10.5)
	if err != nil {
		t.Fatalf("AddLocalOrderLine: %v", err)
	}

	if err := store.ActivateOrder(o.ID, "ord-srv-1"); err != nil {
		t.Fatalf("ActivateOrder: %v", err)
	}

	got, err := store.GetOrder("ord-srv-1")
	if err != nil {
		t.Fatalf("GetOrder after activate: %v", err)
	}
	if got.Flag != models.FlagActive {
		t.Errorf("Flag = %v, want active", got.Flag)
	}
	if _, err := store.GetOrder(o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old temp id still resolves: %v", err)
	}

	// The line must follow the order across the re-key
	gotLine, err := store.GetOrderLine(line.ID)
	if err != nil {
		t.Fatalf("GetOrderLine: %v", err)
	}
	if gotLine.OrderID != "ord-srv-1" {
		t.Errorf("line OrderID = %q, want ord-srv-1", gotLine.OrderID)
	}
}

func TestActivateOrderRejectsNonTempID(t *testing.T) {
	store := testDB(t)
	if err := store.ActivateOrder("ord-1", "ord-2"); err == nil {
		t.Fatal("expected error re-keying a non-temp id")
	}
}

func TestTransitionOrderRejectsInvalid(t *testing.T) {
	store := testDB(t)

	o := &models.Order{ID: "ord-1", State: models.OrderCompleted, Flag: models.FlagActive}
	if err := store.UpsertOrder(o); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}

	err := store.TransitionOrder("ord-1", models.OrderSentToStorekeeper)
	var conflict *workflow.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}

	// Stored state unchanged
	got, err := store.GetOrder("ord-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.State != models.OrderCompleted {
		t.Errorf("State = %v, want completed (unchanged)", got.State)
	}
}

func TestTransitionOrderCascades(t *testing.T) {
	store := testDB(t)

	if err := store.UpsertOrder(&models.Order{ID: "ord-1", State: models.OrderVerifiedByStorekeeper, Flag: models.FlagActive}); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}
	if err := store.UpsertOrderLine(&models.OrderLine{ID: "line-1", OrderID: "ord-1", Flag: models.FlagActive}); err != nil {
		t.Fatalf("UpsertOrderLine: %v", err)
	}

	if err := store.TransitionOrder("ord-1", models.OrderRejected); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}

	line, err := store.GetOrderLine("line-1")
	if err != nil {
		t.Fatalf("GetOrderLine: %v", err)
	}
	if line.Flag != models.FlagDeleted {
		t.Errorf("line Flag = %v, want deleted after rejection", line.Flag)
	}
}

func TestOverlayIsolation(t *testing.T) {
	store := testDB(t)

	base := &models.Order{ID: "ord-1", CustomerID: 5, Note: "original",
		State: models.OrderVerifiedByStorekeeper, Flag: models.FlagActive}
	if err := store.UpsertOrder(base); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}

	edited := *base
	edited.Note = "edited"
	if err := store.WriteOverlay(&edited); err != nil {
		t.Fatalf("WriteOverlay: %v", err)
	}

	// Base row untouched until merge
	got, err := store.GetOrder("ord-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Note != "original" {
		t.Errorf("base Note = %q, want %q", got.Note, "original")
	}

	if err := store.MergeOverlay("ord-1"); err != nil {
		t.Fatalf("MergeOverlay: %v", err)
	}
	got, err = store.GetOrder("ord-1")
	if err != nil {
		t.Fatalf("GetOrder after merge: %v", err)
	}
	if got.Note != "edited" {
		t.Errorf("merged Note = %q, want %q", got.Note, "edited")
	}

	overlay, err := store.GetOverlay("ord-1")
	if err != nil {
		t.Fatalf("GetOverlay: %v", err)
	}
	if overlay != nil {
		t.Error("overlay still present after merge")
	}
}

func TestOverlayRequiresApprovedState(t *testing.T) {
	store := testDB(t)

	if err := store.UpsertOrder(&models.Order{ID: "ord-1", State: models.OrderNew, Flag: models.FlagActive}); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}
	err := store.WriteOverlay(&models.Order{ID: "ord-1", Note: "nope"})
	if !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
}

func TestStockOutOrphanJoin(t *testing.T) {
	store := testDB(t)

	// Sub arrives before its master
	if err := store.UpsertStockOutLine(&models.StockOutLine{
		ID: "sol-1", StockOutID: "so-1", ProductID: 11, Quantity: 2, Flag: models.FlagActive,
	}); err != nil {
		t.Fatalf("UpsertStockOutLine: %v", err)
	}

	joined, err := store.ListStockOutJoined(false)
	if err != nil {
		t.Fatalf("ListStockOutJoined: %v", err)
	}
	if len(joined) != 0 {
		t.Errorf("orphan visible in default view: %d rows", len(joined))
	}

	withOrphans, err := store.ListStockOutJoined(true)
	if err != nil {
		t.Fatalf("ListStockOutJoined orphans: %v", err)
	}
	if len(withOrphans) != 1 || withOrphans[0].Master != nil {
		t.Fatalf("expected 1 orphan row with nil master, got %d", len(withOrphans))
	}

	// Master arrives later; the join backfills without touching the sub
	if err := store.UpsertStockOut(&models.StockOut{ID: "so-1", WarehouseID: 3, Flag: models.FlagActive}); err != nil {
		t.Fatalf("UpsertStockOut: %v", err)
	}
	joined, err = store.ListStockOutJoined(false)
	if err != nil {
		t.Fatalf("ListStockOutJoined after master: %v", err)
	}
	if len(joined) != 1 {
		t.Fatalf("len(joined) = %d, want 1", len(joined))
	}
	if joined[0].Master == nil || joined[0].Master.WarehouseID != 3 {
		t.Errorf("master not joined: %+v", joined[0].Master)
	}
}

func TestPackingCounts(t *testing.T) {
	store := testDB(t)

	if err := store.SetPackedCount("line-1", 5); err != nil {
		t.Fatalf("SetPackedCount: %v", err)
	}
	total, err := store.AddPackedCount("line-1", 3)
	if err != nil {
		t.Fatalf("AddPackedCount: %v", err)
	}
	if total != 8 {
		t.Errorf("total = %v, want 8", total)
	}

	// Sparse: unknown line has no row
	p, err := store.GetPackedCount("line-2")
	if err != nil {
		t.Fatalf("GetPackedCount: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for untracked line, got %+v", p)
	}
}

func TestWatermarkRoundTrip(t *testing.T) {
	store := testDB(t)

	wm, err := store.GetWatermark(kinds.Order)
	if err != nil {
		t.Fatalf("GetWatermark: %v", err)
	}
	if !wm.UpdatedSince.IsZero() {
		t.Errorf("fresh watermark UpdatedSince = %v, want zero", wm.UpdatedSince)
	}

	mark := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SetWatermark(kinds.Order, mark); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}
	wm, err = store.GetWatermark(kinds.Order)
	if err != nil {
		t.Fatalf("GetWatermark: %v", err)
	}
	if !wm.UpdatedSince.Equal(mark) {
		t.Errorf("UpdatedSince = %v, want %v", wm.UpdatedSince, mark)
	}
	if wm.LastSyncAt.IsZero() {
		t.Error("LastSyncAt not stamped")
	}
}

func TestPendingQueue(t *testing.T) {
	store := testDB(t)

	if err := store.AppendPending(`{"data_ids":[{"kind":1,"id":5}]}`); err != nil {
		t.Fatalf("AppendPending: %v", err)
	}
	if err := store.AppendPending(`{"data_ids":[{"kind":3,"id":9}]}`); err != nil {
		t.Fatalf("AppendPending: %v", err)
	}

	pending, err := store.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].ID >= pending[1].ID {
		t.Error("pending rows not in arrival order")
	}

	if err := store.DeletePending(pending[0].ID); err != nil {
		t.Fatalf("DeletePending: %v", err)
	}
	n, err := store.CountPending()
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if n != 1 {
		t.Errorf("CountPending = %d, want 1", n)
	}
}

func TestDedupKeysDurable(t *testing.T) {
	dir := t.TempDir()
	store, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if _, _, err := store.TouchDedupKey(kinds.Order, "5", now); err != nil {
		t.Fatalf("TouchDedupKey: %v", err)
	}
	store.Close()

	// Survives reopen
	store, err = Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	prev, had, err := store.TouchDedupKey(kinds.Order, "5", now.Add(time.Second))
	if err != nil {
		t.Fatalf("TouchDedupKey after reopen: %v", err)
	}
	if !had {
		t.Fatal("dedup key lost across restart")
	}
	if !prev.Equal(now) {
		t.Errorf("prev = %v, want %v", prev, now)
	}
}

func TestTouchDedupKeyReportsReadError(t *testing.T) {
	store := testDB(t)

	// A broken dedup table must surface as an error, not as "no previous
	// key": callers fail open on errors and would otherwise suppress nothing
	// while believing the window is intact.
	if _, err := store.Conn().Exec(`DROP TABLE dedup_keys`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if _, _, err := store.TouchDedupKey(kinds.Order, "5", time.Now().UTC()); err == nil {
		t.Fatal("TouchDedupKey returned nil on a broken table")
	}
}

func TestDeleteDedupKey(t *testing.T) {
	store := testDB(t)

	now := time.Now().UTC()
	if _, _, err := store.TouchDedupKey(kinds.Order, "5", now); err != nil {
		t.Fatalf("TouchDedupKey: %v", err)
	}

	removed, err := store.DeleteDedupKey(kinds.Order, "5")
	if err != nil {
		t.Fatalf("DeleteDedupKey: %v", err)
	}
	if !removed {
		t.Error("existing key not reported as removed")
	}

	removed, err = store.DeleteDedupKey(kinds.Order, "5")
	if err != nil {
		t.Fatalf("DeleteDedupKey repeat: %v", err)
	}
	if removed {
		t.Error("absent key reported as removed")
	}

	_, had, err := store.TouchDedupKey(kinds.Order, "5", now.Add(time.Second))
	if err != nil {
		t.Fatalf("TouchDedupKey after delete: %v", err)
	}
	if had {
		t.Error("deleted key still present")
	}
}

func TestUnviewedCounts(t *testing.T) {
	store := testDB(t)

	if err := store.UpsertOrder(&models.Order{ID: "ord-1", Flag: models.FlagActive}); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}
	if err := store.UpsertStockOut(&models.StockOut{ID: "so-1", Flag: models.FlagActive}); err != nil {
		t.Fatalf("UpsertStockOut: %v", err)
	}

	orders, stockouts, err := store.UnviewedCounts()
	if err != nil {
		t.Fatalf("UnviewedCounts: %v", err)
	}
	if orders != 1 || stockouts != 1 {
		t.Errorf("counts = %d/%d, want 1/1", orders, stockouts)
	}

	if err := store.MarkViewed(kinds.Order, "ord-1"); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	orders, _, err = store.UnviewedCounts()
	if err != nil {
		t.Fatalf("UnviewedCounts: %v", err)
	}
	if orders != 0 {
		t.Errorf("orders = %d after MarkViewed, want 0", orders)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	store := testDB(t)

	v, err := store.GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}

	n, err := store.RunMigrations()
	if err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if n != 0 {
		t.Errorf("RunMigrations ran %d on up-to-date schema, want 0", n)
	}
}
