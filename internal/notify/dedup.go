package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fieldops/fieldsync/internal/db"
	"github.com/fieldops/fieldsync/internal/kinds"
)

const (
	// DefaultWindow is the admission window: a second notification for the
	// same (kind, id) inside it is dropped. The server fans the same change
	// out to every device session, so bursts of duplicates are normal.
	DefaultWindow = 2 * time.Second

	// sweepThreshold triggers a bulk purge of expired keys once the live
	// table grows past it.
	sweepThreshold = 512
)

// Deduper is the admission gate for push notifications. Check-and-record is
// atomic under one mutex; the keys are persisted so the window survives a
// process restart.
type Deduper struct {
	mu     sync.Mutex
	store  *db.DB
	window time.Duration
	now    func() time.Time
	live   int
}

// NewDeduper creates an admission gate over the durable key table.
func NewDeduper(store *db.DB, window time.Duration) *Deduper {
	if window <= 0 {
		window = DefaultWindow
	}
	d := &Deduper{store: store, window: window, now: time.Now}
	if n, err := store.CountDedupKeys(); err == nil {
		d.live = n
	}
	return d
}

// Admit reports whether a notification for (kind, id) should be processed.
// The first call inside a window wins; later calls lose until the window
// expires. Admission and recording happen under one lock so two concurrent
// notifications cannot both win.
func (d *Deduper) Admit(kind kinds.Kind, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now().UTC()
	prev, had, err := d.store.TouchDedupKey(kind, id, now)
	if err != nil {
		// Fail open: a broken dedup table must not silence notifications.
		slog.Warn("dedup admission check failed", "kind", kind.String(), "id", id, "error", err)
		return true
	}
	if !had {
		d.live++
	}

	d.maybeSweep(now)

	if had && now.Sub(prev) < d.window {
		return false
	}
	return true
}

// Forget drops the admission record for (kind, id). Called when processing
// a notification failed so the retry is not suppressed by the failed
// attempt's own key.
func (d *Deduper) Forget(kind kinds.Kind, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed, err := d.store.DeleteDedupKey(kind, id)
	if err != nil {
		slog.Warn("dedup forget failed", "kind", kind.String(), "id", id, "error", err)
		return
	}
	if removed {
		d.live--
	}
}

// maybeSweep bulk-purges expired keys when the table has grown. Expired keys
// are also effectively purged lazily on hit by the window comparison, so the
// sweep only bounds table size.
func (d *Deduper) maybeSweep(now time.Time) {
	if d.live < sweepThreshold {
		return
	}
	removed, err := d.store.SweepDedupKeys(now.Add(-d.window))
	if err != nil {
		slog.Warn("dedup sweep failed", "error", err)
		return
	}
	d.live -= int(removed)
	slog.Debug("dedup sweep", "removed", removed, "live", d.live)
}
