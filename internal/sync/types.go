// Package sync reconciles the local replica with the remote API: paged
// watermark pulls, single-record fetches triggered by push notifications,
// and pushes of locally created or edited rows.
package sync

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fieldops/fieldsync/internal/kinds"
)

// Record is one entity as a column map, ready for a generic upsert.
type Record map[string]any

// fieldMaps translate server JSON field names to local column names, one map
// per kind. Unknown server fields are dropped; the server adding a field must
// never break an older client.
var fieldMaps = map[kinds.Kind]map[string]string{
	kinds.Order: {
		"id":          "id",
		"customerId":  "customer_id",
		"customer_id": "customer_id",
		"number":      "number",
		"state":       "state",
		"flag":        "flag",
		"total":       "total",
		"note":        "note",
		"createdAt":   "created_at",
		"created_at":  "created_at",
	},
	kinds.OrderLine: {
		"id":         "id",
		"orderId":    "order_id",
		"order_id":   "order_id",
		"productId":  "product_id",
		"product_id": "product_id",
		"quantity":   "quantity",
		"price":      "price",
		"state":      "state",
		"flag":       "flag",
	},
	kinds.StockOut: {
		"id":           "id",
		"warehouseId":  "warehouse_id",
		"warehouse_id": "warehouse_id",
		"reporterId":   "reporter_id",
		"reporter_id":  "reporter_id",
		"note":         "note",
		"flag":         "flag",
		"createdAt":    "created_at",
		"created_at":   "created_at",
	},
	kinds.StockOutLine: {
		"id":          "id",
		"stockoutId":  "stockout_id",
		"stockout_id": "stockout_id",
		"productId":   "product_id",
		"product_id":  "product_id",
		"quantity":    "quantity",
		"state":       "state",
		"flag":        "flag",
	},
	kinds.Packing: {
		"lineId":  "line_id",
		"line_id": "line_id",
		"packed":  "packed",
	},
}

// tableColumns lists the full column set per table, used when reading a row
// back as a Record for partial-response merging.
var tableColumns = map[kinds.Kind][]string{
	kinds.Order:        {"id", "customer_id", "number", "state", "flag", "total", "note", "viewed", "created_at", "updated_at"},
	kinds.OrderLine:    {"id", "order_id", "product_id", "quantity", "price", "state", "flag", "updated_at"},
	kinds.StockOut:     {"id", "warehouse_id", "reporter_id", "note", "flag", "viewed", "created_at", "updated_at"},
	kinds.StockOutLine: {"id", "stockout_id", "product_id", "quantity", "state", "flag", "updated_at"},
	kinds.Packing:      {"line_id", "packed", "updated_at"},
}

// keyColumn returns the primary key column of a kind's table.
func keyColumn(kind kinds.Kind) string {
	if kind == kinds.Packing {
		return "line_id"
	}
	return "id"
}

// normalizeRecord decodes a raw server record and maps its fields onto local
// column names. Ids are normalized to strings since the server sends them as
// numbers in push payloads but strings in REST responses.
func normalizeRecord(kind kinds.Kind, raw json.RawMessage) (Record, error) {
	var serverFields map[string]any
	if err := json.Unmarshal(raw, &serverFields); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", kind, err)
	}

	fm, ok := fieldMaps[kind]
	if !ok {
		return nil, fmt.Errorf("no field map for kind %s", kind)
	}

	rec := make(Record, len(serverFields))
	for name, value := range serverFields {
		col, ok := fm[name]
		if !ok {
			continue
		}
		if textKeyColumns[col] {
			value = normalizeID(value)
		}
		rec[col] = value
	}
	return rec, nil
}

// textKeyColumns are the identifier columns stored as TEXT locally. The
// server sends them as numbers in push payloads but strings in REST bodies.
var textKeyColumns = map[string]bool{
	"id":          true,
	"order_id":    true,
	"stockout_id": true,
	"line_id":     true,
}

func normalizeID(v any) any {
	switch id := v.(type) {
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case json.Number:
		return id.String()
	default:
		return v
	}
}

// buildInsert produces an INSERT OR REPLACE statement for a record with its
// columns in sorted order, so identical records always generate identical
// SQL.
func buildInsert(table string, rec Record) (string, []any) {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		args[i] = rec[c]
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args
}
