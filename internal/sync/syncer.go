package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/fieldops/fieldsync/internal/db"
	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/remote"
)

const defaultPageSize = 100

// Options configure a Syncer.
type Options struct {
	ActorType int
	ActorID   int64
	PageSize  int
}

// Syncer orchestrates all sync channels. A per-kind mutex keeps a bulk pull
// and a notification-triggered single fetch of the same kind from
// interleaving their store writes.
type Syncer struct {
	store    *db.DB
	client   *remote.Client
	opts     Options
	channels map[kinds.Kind]*Channel
	locks    map[kinds.Kind]*stdsync.Mutex

	cancelMu stdsync.Mutex
	cancel   context.CancelFunc
}

// NewSyncer wires one channel per syncable kind.
func NewSyncer(store *db.DB, client *remote.Client, opts Options) *Syncer {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	s := &Syncer{
		store:    store,
		client:   client,
		opts:     opts,
		channels: make(map[kinds.Kind]*Channel),
		locks:    make(map[kinds.Kind]*stdsync.Mutex),
	}
	for _, k := range kinds.Syncable() {
		s.channels[k] = NewChannel(k, store, client)
		s.locks[k] = &stdsync.Mutex{}
	}
	return s
}

// sessionContext derives a context the syncer can cancel on session
// invalidation (logout push).
func (s *Syncer) sessionContext(ctx context.Context) context.Context {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	ctx, s.cancel = context.WithCancel(ctx)
	return ctx
}

// CancelSession abandons in-flight sync work. Page boundaries are the commit
// points, so a cancelled sync never leaves a half-applied page watermark.
func (s *Syncer) CancelSession() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SyncAll runs push-then-pull for every syncable kind in master-before-sub
// order. The first error aborts the run; kinds already synced stay synced.
func (s *Syncer) SyncAll(ctx context.Context) error {
	ctx = s.sessionContext(ctx)
	for _, k := range kinds.Syncable() {
		if err := s.SyncKind(ctx, k); err != nil {
			return fmt.Errorf("sync %s: %w", k, err)
		}
	}
	return nil
}

// SyncKind pushes local changes for one kind, then pulls pages until the
// server reports no more. The watermark only advances after a fully applied
// page.
func (s *Syncer) SyncKind(ctx context.Context, kind kinds.Kind) error {
	mu := s.locks[kind]
	mu.Lock()
	defer mu.Unlock()

	if err := s.pushLocal(ctx, kind); err != nil {
		return err
	}
	return s.pullAll(ctx, kind)
}

func (s *Syncer) pullAll(ctx context.Context, kind kinds.Kind) error {
	ch := s.channels[kind]
	wm, err := s.store.GetWatermark(kind)
	if err != nil {
		return err
	}

	page := 1
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		applied, hasMore, serverTime, err := ch.PullBatch(ctx, remote.ListParams{
			Page:         page,
			PageSize:     s.opts.PageSize,
			ActorType:    s.opts.ActorType,
			ActorID:      s.opts.ActorID,
			UpdatedSince: wm.UpdatedSince,
		})
		if err != nil {
			return err
		}
		total += applied

		// Advance only after the page fully applied; a crash replays the
		// page, and replay is idempotent.
		if !serverTime.IsZero() {
			if err := s.store.SetWatermark(kind, serverTime); err != nil {
				return err
			}
		}
		if !hasMore {
			break
		}
		page++
	}

	slog.Debug("pull complete", "kind", kind.String(), "records", total)
	return nil
}

// SyncOne fetches a single record, typically in response to a push
// notification. Holds the kind lock so it cannot race a bulk pull.
func (s *Syncer) SyncOne(ctx context.Context, kind kinds.Kind, id string) error {
	ch, ok := s.channels[kind]
	if !ok {
		return fmt.Errorf("sync one: kind %s has no channel", kind)
	}
	mu := s.locks[kind]
	mu.Lock()
	defer mu.Unlock()

	return ch.PullOne(ctx, id)
}

// pushLocal sends optimistic temp rows and staged overlay edits to the
// server. Only orders and order lines are created locally; overlays exist
// for orders only.
func (s *Syncer) pushLocal(ctx context.Context, kind kinds.Kind) error {
	switch kind {
	case kinds.Order:
		if err := s.pushTempOrders(ctx); err != nil {
			return err
		}
		return s.pushOverlays(ctx)
	case kinds.OrderLine:
		return s.pushTempLines(ctx)
	}
	return nil
}

func (s *Syncer) pushTempOrders(ctx context.Context) error {
	orders, err := s.store.ListOrders(db.OrderFilter{IncludeHidden: true})
	if err != nil {
		return err
	}
	ch := s.channels[kinds.Order]
	for _, o := range orders {
		if o.Flag != models.FlagTemp || !db.IsTempID(o.ID) {
			continue
		}
		payload := map[string]any{
			"customerId": o.CustomerID,
			"state":      int(o.State),
			"note":       o.Note,
			"total":      o.Total,
		}
		serverID, err := ch.PushCreate(ctx, o.ID, payload)
		if err != nil {
			if isTerminalPushErr(err) {
				slog.Warn("server rejected local order, keeping as draft",
					"temp_id", o.ID, "error", err)
				if ferr := s.store.SetOrderFlag(o.ID, models.FlagDraft); ferr != nil {
					return ferr
				}
				continue
			}
			return err
		}
		slog.Debug("order created remotely", "temp_id", o.ID, "server_id", serverID)
	}
	return nil
}

func (s *Syncer) pushTempLines(ctx context.Context) error {
	rows, err := s.store.Conn().Query(
		`SELECT id FROM order_lines WHERE flag = ? ORDER BY id`, models.FlagTemp)
	if err != nil {
		return fmt.Errorf("list temp lines: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan temp line id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	ch := s.channels[kinds.OrderLine]
	for _, id := range ids {
		l, err := s.store.GetOrderLine(id)
		if err != nil {
			return err
		}
		if db.IsTempID(l.OrderID) {
			// Owning order has not been pushed yet; it goes first next run.
			continue
		}
		payload := map[string]any{
			"orderId":   l.OrderID,
			"productId": l.ProductID,
			"quantity":  l.Quantity,
			"price":     l.Price,
			"state":     int(l.State),
		}
		if _, err := ch.PushCreate(ctx, l.ID, payload); err != nil {
			if isTerminalPushErr(err) {
				slog.Warn("server rejected local line, keeping as draft",
					"temp_id", l.ID, "error", err)
				if ferr := s.store.SetOrderLineFlag(l.ID, models.FlagDraft); ferr != nil {
					return ferr
				}
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Syncer) pushOverlays(ctx context.Context) error {
	rows, err := s.store.Conn().Query(`SELECT id FROM order_overlays ORDER BY id`)
	if err != nil {
		return fmt.Errorf("list overlays: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan overlay id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	ch := s.channels[kinds.Order]
	for _, id := range ids {
		overlay, err := s.store.GetOverlay(id)
		if err != nil {
			return err
		}
		if overlay == nil {
			continue
		}
		payload := map[string]any{
			"customerId": overlay.CustomerID,
			"note":       overlay.Note,
			"total":      overlay.Total,
		}
		if err := ch.PushUpdate(ctx, id, payload); err != nil {
			if isTerminalPushErr(err) {
				slog.Warn("server rejected overlay edit, discarding",
					"order_id", id, "error", err)
				if cerr := s.store.ClearOverlay(id); cerr != nil {
					return cerr
				}
				continue
			}
			return err
		}
		if err := s.store.MergeOverlay(id); err != nil {
			return err
		}
	}
	return nil
}

// LastSync returns the most recent successful sync time across all kinds.
func (s *Syncer) LastSync() (time.Time, error) {
	var last time.Time
	for _, k := range kinds.Syncable() {
		wm, err := s.store.GetWatermark(k)
		if err != nil {
			return time.Time{}, err
		}
		if wm.LastSyncAt.After(last) {
			last = wm.LastSyncAt
		}
	}
	return last, nil
}

func isTerminalPushErr(err error) bool {
	var ve *remote.ValidationError
	return errors.As(err, &ve)
}
