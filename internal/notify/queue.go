package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/fieldops/fieldsync/internal/db"
)

// Queue is the durable entry point for push payloads. Payloads arriving
// before the router is attached (or while it is detached mid-sync) are
// parked in SQLite and replayed by DrainPending.
type Queue struct {
	store *db.DB

	mu     sync.Mutex
	router *Router
}

// NewQueue creates a queue over the durable pending table.
func NewQueue(store *db.DB) *Queue {
	return &Queue{store: store}
}

// Attach connects the router. Until attached every payload is parked.
func (q *Queue) Attach(r *Router) {
	q.mu.Lock()
	q.router = r
	q.mu.Unlock()
}

// Detach disconnects the router; subsequent payloads are parked.
func (q *Queue) Detach() {
	q.mu.Lock()
	q.router = nil
	q.mu.Unlock()
}

// HandlePush receives a raw push payload. With a router attached it is
// decoded and routed immediately; otherwise it is parked durably so nothing
// is lost across restarts.
func (q *Queue) HandlePush(ctx context.Context, raw []byte) {
	q.mu.Lock()
	router := q.router
	q.mu.Unlock()

	if router == nil {
		if err := q.store.AppendPending(string(raw)); err != nil {
			slog.Warn("failed to park push payload", "error", err)
		}
		return
	}

	p, err := Decode(raw)
	if err != nil {
		slog.Warn("malformed push payload dropped", "error", err)
		return
	}
	if !router.Route(ctx, p) {
		// A ref failed to fetch; park the payload so the next drain retries.
		if err := q.store.AppendPending(string(raw)); err != nil {
			slog.Warn("failed to park push payload", "error", err)
		}
	}
}

// DrainPending replays parked payloads in arrival order. Within one drain
// pass payloads with an identical ref set are collapsed to a single fetch.
// Each row is deleted only after it was processed; a row whose processing
// fails stays for the next drain and does not block its siblings.
func (q *Queue) DrainPending(ctx context.Context) (int, error) {
	q.mu.Lock()
	router := q.router
	q.mu.Unlock()
	if router == nil {
		return 0, nil
	}

	pending, err := q.store.ListPending()
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	processed := 0
	for _, row := range pending {
		p, err := Decode([]byte(row.Payload))
		if err != nil {
			// A malformed row would wedge the queue forever.
			slog.Warn("dropping malformed parked payload", "id", row.ID, "error", err)
			if derr := q.store.DeletePending(row.ID); derr != nil {
				return processed, derr
			}
			continue
		}

		key := composedKey(p)
		if seen[key] {
			if derr := q.store.DeletePending(row.ID); derr != nil {
				return processed, derr
			}
			continue
		}
		seen[key] = true

		if !router.Route(ctx, p) {
			slog.Warn("parked payload failed, keeping for next drain", "id", row.ID)
			continue
		}

		if err := q.store.DeletePending(row.ID); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// composedKey identifies a payload by its full ref set for within-drain
// collapsing.
func composedKey(p *Payload) string {
	keys := make([]string, len(p.Refs))
	for i, r := range p.Refs {
		keys[i] = r.DedupKey()
	}
	return strings.Join(keys, "|")
}
