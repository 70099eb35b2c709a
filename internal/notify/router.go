package notify

import (
	"context"
	"log/slog"
	"sort"

	"github.com/fieldops/fieldsync/internal/bus"
	"github.com/fieldops/fieldsync/internal/kinds"
)

// Fetcher pulls a single record in response to a notification. Implemented
// by the syncer.
type Fetcher interface {
	SyncOne(ctx context.Context, kind kinds.Kind, id string) error
}

// Router turns decoded push payloads into single-record fetches. Per-item
// failures are logged and isolated: push processing is a background path and
// must never crash the listener.
type Router struct {
	fetch      Fetcher
	dedup      *Deduper
	bus        *bus.Bus
	endSession func()
	handlers   map[kinds.Kind]func(context.Context, Ref) error
}

// NewRouter builds the dispatch table. endSession is invoked on a logout
// payload; it cancels in-flight sync work.
func NewRouter(fetch Fetcher, dedup *Deduper, b *bus.Bus, endSession func()) *Router {
	r := &Router{
		fetch:      fetch,
		dedup:      dedup,
		bus:        b,
		endSession: endSession,
		handlers:   make(map[kinds.Kind]func(context.Context, Ref) error),
	}
	for _, k := range kinds.Syncable() {
		r.handlers[k] = r.fetchRef
	}
	return r
}

func (r *Router) fetchRef(ctx context.Context, ref Ref) error {
	return r.fetch.SyncOne(ctx, ref.Kind, ref.ID)
}

// Route processes one payload: logout short-circuits everything else,
// otherwise each admitted ref is fetched master-before-sub and a single
// refresh signal is published at the end. Returns false when any admitted
// ref failed, so durable callers know to keep the payload for replay. A
// failed ref's dedup key is forgotten, otherwise the failed attempt would
// suppress its own retry.
func (r *Router) Route(ctx context.Context, p *Payload) bool {
	if p.Logout() {
		slog.Warn("logout notification received, terminating session")
		if r.endSession != nil {
			r.endSession()
		}
		return true
	}

	refs := orderRefs(p.Refs)

	processed := 0
	allOK := true
	for _, ref := range refs {
		handler, ok := r.handlers[ref.Kind]
		if !ok {
			slog.Warn("unknown notification kind, skipping", "kind", int(ref.Kind), "id", ref.ID)
			continue
		}
		if !r.dedup.Admit(ref.Kind, ref.ID) {
			slog.Debug("duplicate notification dropped", "kind", ref.Kind.String(), "id", ref.ID)
			continue
		}
		if err := handler(ctx, ref); err != nil {
			slog.Warn("notification fetch failed", "kind", ref.Kind.String(), "id", ref.ID, "error", err)
			r.dedup.Forget(ref.Kind, ref.ID)
			allOK = false
			continue
		}
		processed++
	}

	if processed > 0 && r.bus != nil {
		r.bus.Publish()
	}
	return allOK
}

// orderRefs sorts a batch so masters land before their subs: a sub fetched
// first would be an orphan until the master arrives.
func orderRefs(refs []Ref) []Ref {
	out := make([]Ref, len(refs))
	copy(out, refs)
	sort.SliceStable(out, func(i, j int) bool {
		return kindRank(out[i].Kind) < kindRank(out[j].Kind)
	})
	return out
}

func kindRank(k kinds.Kind) int {
	switch k {
	case kinds.Order, kinds.StockOut:
		return 0
	case kinds.OrderLine, kinds.StockOutLine:
		return 1
	}
	return 2
}
