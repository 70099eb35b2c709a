package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldops/fieldsync/internal/db"
	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/remote"
)

func pageResponse(w http.ResponseWriter, items []map[string]any, hasMore bool, serverTime time.Time) {
	raw, _ := json.Marshal(map[string]any{
		"items":       items,
		"has_more":    hasMore,
		"server_time": serverTime.Format(time.RFC3339),
	})
	fmt.Fprintf(w, `{"status":"ok","data":%s}`, raw)
}

func TestSyncKindPullsAllPages(t *testing.T) {
	store := testStore(t)
	serverTime := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pages.Add(1)
		switch page {
		case 1:
			pageResponse(w, []map[string]any{
				{"id": 1, "customerId": 1, "state": 0, "flag": 1},
				{"id": 2, "customerId": 2, "state": 0, "flag": 1},
			}, true, serverTime)
		default:
			pageResponse(w, []map[string]any{
				{"id": 3, "customerId": 3, "state": 0, "flag": 1},
			}, false, serverTime)
		}
	}))
	defer srv.Close()

	s := NewSyncer(store, remote.NewClient(srv.URL, "key", "dev"), Options{PageSize: 2})
	if err := s.SyncKind(context.Background(), kinds.Order); err != nil {
		t.Fatalf("SyncKind: %v", err)
	}

	if got := pages.Load(); got != 2 {
		t.Errorf("server saw %d page requests, want 2", got)
	}

	orders, err := store.ListOrders(db.OrderFilter{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("len(orders) = %d, want 3", len(orders))
	}

	wm, err := store.GetWatermark(kinds.Order)
	if err != nil {
		t.Fatalf("GetWatermark: %v", err)
	}
	if !wm.UpdatedSince.Equal(serverTime) {
		t.Errorf("watermark = %v, want %v", wm.UpdatedSince, serverTime)
	}
}

func TestSyncKindSendsWatermark(t *testing.T) {
	store := testStore(t)
	mark := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if err := store.SetWatermark(kinds.Order, mark); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}

	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("updatedSince")
		pageResponse(w, nil, false, time.Now().UTC())
	}))
	defer srv.Close()

	s := NewSyncer(store, remote.NewClient(srv.URL, "key", "dev"), Options{})
	if err := s.SyncKind(context.Background(), kinds.Order); err != nil {
		t.Fatalf("SyncKind: %v", err)
	}
	if gotSince != mark.Format(time.RFC3339) {
		t.Errorf("updatedSince = %q, want %q", gotSince, mark.Format(time.RFC3339))
	}
}

func TestSyncKindPushesTempOrdersFirst(t *testing.T) {
	store := testStore(t)
	if _, err := store.CreateLocalOrder(42, "created offline"); err != nil {
		t.Fatalf("CreateLocalOrder: %v", err)
	}

	var created atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			created.Add(1)
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["customerId"] != float64(42) {
				t.Errorf("pushed customerId = %v, want 42", body["customerId"])
			}
			fmt.Fprint(w, `{"status":"ok","data":{"id":500,"customerId":42,"state":0,"flag":1}}`)
			return
		}
		pageResponse(w, nil, false, time.Now().UTC())
	}))
	defer srv.Close()

	s := NewSyncer(store, remote.NewClient(srv.URL, "key", "dev"), Options{})
	if err := s.SyncKind(context.Background(), kinds.Order); err != nil {
		t.Fatalf("SyncKind: %v", err)
	}
	if created.Load() != 1 {
		t.Fatalf("server saw %d creates, want 1", created.Load())
	}

	got, err := store.GetOrder("500")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Flag != models.FlagActive {
		t.Errorf("Flag = %v, want active", got.Flag)
	}
}

func TestRejectedCreateBecomesDraft(t *testing.T) {
	store := testStore(t)
	o, err := store.CreateLocalOrder(1, "bad order")
	if err != nil {
		t.Fatalf("CreateLocalOrder: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"status":"error","message":"customer is blocked"}`)
			return
		}
		pageResponse(w, nil, false, time.Now().UTC())
	}))
	defer srv.Close()

	s := NewSyncer(store, remote.NewClient(srv.URL, "key", "dev"), Options{})
	if err := s.SyncKind(context.Background(), kinds.Order); err != nil {
		t.Fatalf("SyncKind should isolate the rejection: %v", err)
	}

	got, err := store.GetOrder(o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Flag != models.FlagDraft {
		t.Errorf("Flag = %v, want draft after server rejection", got.Flag)
	}
}

func TestCancelSessionAbortsPull(t *testing.T) {
	store := testStore(t)

	var s *Syncer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Cancel mid-run: the next page check must abort
		s.CancelSession()
		pageResponse(w, []map[string]any{{"id": 1, "customerId": 1, "flag": 1}}, true, time.Now().UTC())
	}))
	defer srv.Close()

	s = NewSyncer(store, remote.NewClient(srv.URL, "key", "dev"), Options{})
	err := s.SyncAll(context.Background())
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}
