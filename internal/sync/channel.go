package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldops/fieldsync/internal/db"
	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/remote"
)

// Channel moves one entity kind between the remote API and the local
// replica. All channels share the store and the remote client; each is
// stateless beyond its kind.
type Channel struct {
	kind   kinds.Kind
	store  *db.DB
	client *remote.Client
}

// NewChannel creates a sync channel for a kind.
func NewChannel(kind kinds.Kind, store *db.DB, client *remote.Client) *Channel {
	return &Channel{kind: kind, store: store, client: client}
}

// PullBatch fetches one page of changed records and applies them. Returns
// the applied count, whether more pages remain, and the server time of the
// page for watermark advancement. Applying the same page twice is a no-op.
func (c *Channel) PullBatch(ctx context.Context, params remote.ListParams) (int, bool, time.Time, error) {
	page, err := c.client.List(ctx, c.kind.Resource(), params)
	if err != nil {
		return 0, false, time.Time{}, err
	}

	applied := 0
	for _, raw := range page.Items {
		if err := c.ApplyToStore(raw); err != nil {
			return applied, false, time.Time{}, fmt.Errorf("apply %s record: %w", c.kind, err)
		}
		applied++
	}
	return applied, page.HasMore, page.ServerTime, nil
}

// PullOne fetches a single record by id and applies it. A remote
// remote.ErrNotFound is dropped silently: notifications can outrun the
// record becoming visible on the server, so a missing record is not
// evidence of deletion and must not disturb the local row.
func (c *Channel) PullOne(ctx context.Context, id string) error {
	raw, err := c.client.Get(ctx, c.kind.Resource(), id)
	if errors.Is(err, remote.ErrNotFound) {
		slog.Debug("record not on server yet, skipping", "kind", c.kind.String(), "id", id)
		return nil
	}
	if err != nil {
		return err
	}
	return c.ApplyToStore(raw)
}

// PushCreate sends a locally created temp row to the server and replaces the
// optimistic row with the authoritative one. Sub rows keyed by the temp id
// are re-pointed atomically by the store before the authoritative record is
// applied.
func (c *Channel) PushCreate(ctx context.Context, tempID string, payload any) (string, error) {
	raw, err := c.client.Create(ctx, c.kind.Resource(), payload)
	if err != nil {
		return "", err
	}

	rec, err := normalizeRecord(c.kind, raw)
	if err != nil {
		return "", err
	}
	serverID, ok := rec[keyColumn(c.kind)].(string)
	if !ok || serverID == "" {
		return "", fmt.Errorf("push create %s: server response has no id", c.kind)
	}

	switch c.kind {
	case kinds.Order:
		err = c.store.ActivateOrder(tempID, serverID)
	case kinds.OrderLine:
		err = c.store.ActivateOrderLine(tempID, serverID)
	default:
		err = c.rekey(tempID, serverID)
	}
	if err != nil {
		return "", err
	}

	if err := c.ApplyToStore(raw); err != nil {
		return "", err
	}
	return serverID, nil
}

func (c *Channel) rekey(tempID, serverID string) error {
	key := keyColumn(c.kind)
	var err error
	if c.kind == kinds.Packing {
		_, err = c.store.Conn().Exec(
			fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", c.kind.Table(), key, key),
			serverID, tempID)
	} else {
		_, err = c.store.Conn().Exec(
			fmt.Sprintf("UPDATE %s SET %s = ?, flag = ? WHERE %s = ?", c.kind.Table(), key, key),
			serverID, models.FlagActive, tempID)
	}
	if err != nil {
		return fmt.Errorf("re-key %s %s: %w", c.kind, tempID, err)
	}
	return nil
}

// PushUpdate sends changed fields of an existing row. The server may answer
// with a partial object holding only the fields it adjusted; those are
// merged onto the local row, absent fields keep their prior values.
func (c *Channel) PushUpdate(ctx context.Context, id string, payload any) error {
	raw, err := c.client.Update(ctx, c.kind.Resource(), id, payload)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	partial, err := normalizeRecord(c.kind, raw)
	if err != nil {
		return err
	}
	if len(partial) == 0 {
		return nil
	}

	current, err := c.readRecord(id)
	if err != nil {
		return err
	}
	for col, v := range partial {
		current[col] = v
	}
	return c.upsert(current)
}

// ApplyToStore normalizes a raw server record and upserts it. updated_at is
// always stamped from the local clock so the watermark comparison stays in
// one time domain.
func (c *Channel) ApplyToStore(raw []byte) error {
	rec, err := normalizeRecord(c.kind, raw)
	if err != nil {
		return err
	}
	return c.upsert(rec)
}

func (c *Channel) upsert(rec Record) error {
	key := keyColumn(c.kind)
	if _, ok := rec[key]; !ok {
		return fmt.Errorf("apply %s record: missing %s", c.kind, key)
	}
	rec["updated_at"] = time.Now().UTC()

	query, args := buildInsert(c.kind.Table(), rec)
	if _, err := c.store.Conn().Exec(query, args...); err != nil {
		return fmt.Errorf("upsert %s %v: %w", c.kind, rec[key], err)
	}
	return nil
}

// readRecord loads a full row back as a Record for partial-response merging.
func (c *Channel) readRecord(id string) (Record, error) {
	cols := tableColumns[c.kind]
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(cols, ", "), c.kind.Table(), keyColumn(c.kind))

	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
	}
	err := c.store.Conn().QueryRow(query, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s %s: %w", c.kind, id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", c.kind, id, err)
	}

	rec := make(Record, len(cols))
	for i, col := range cols {
		rec[col] = *(dest[i].(*any))
	}
	return rec, nil
}
