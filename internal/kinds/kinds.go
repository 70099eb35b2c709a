// Package kinds defines the canonical entity-kind identifiers used in push
// payloads and sync routing. Each synchronized record category maps to a
// small integer; the values are part of the wire contract with the server
// and must not be renumbered.
package kinds

import "strings"

// Kind identifies a category of synchronized record.
type Kind int

const (
	Order        Kind = 1
	OrderLine    Kind = 2
	StockOut     Kind = 3
	StockOutLine Kind = 4
	Packing      Kind = 5
	// Logout is the special kind that forces session termination instead of
	// a data fetch. It short-circuits the rest of its payload.
	Logout Kind = 6
)

// Table returns the local replica table backing the kind, or "" for kinds
// that carry no data (Logout).
func (k Kind) Table() string {
	switch k {
	case Order:
		return "orders"
	case OrderLine:
		return "order_lines"
	case StockOut:
		return "stockouts"
	case StockOutLine:
		return "stockout_lines"
	case Packing:
		return "packing_counts"
	}
	return ""
}

// Resource returns the remote endpoint path segment for the kind.
func (k Kind) Resource() string {
	switch k {
	case Order:
		return "orders"
	case OrderLine:
		return "order-lines"
	case StockOut:
		return "stockouts"
	case StockOutLine:
		return "stockout-lines"
	case Packing:
		return "packing"
	}
	return ""
}

func (k Kind) String() string {
	if t := k.Table(); t != "" {
		return t
	}
	if k == Logout {
		return "logout"
	}
	return "unknown"
}

// Master returns the master kind a sub kind belongs to, and whether k is a
// sub kind at all. Used by the router to order master fetches before subs.
func (k Kind) Master() (Kind, bool) {
	switch k {
	case OrderLine:
		return Order, true
	case StockOutLine:
		return StockOut, true
	}
	return 0, false
}

// Syncable returns every kind backed by a sync channel, in master-before-sub
// order.
func Syncable() []Kind {
	return []Kind{Order, OrderLine, StockOut, StockOutLine, Packing}
}

// Valid reports whether k is a known kind (including Logout).
func Valid(k Kind) bool {
	switch k {
	case Order, OrderLine, StockOut, StockOutLine, Packing, Logout:
		return true
	}
	return false
}

// Parse resolves a CLI-facing kind name to its Kind. Accepts singular and
// plural forms.
func Parse(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "order", "orders":
		return Order, true
	case "line", "lines", "order-line", "order-lines", "order_lines":
		return OrderLine, true
	case "stockout", "stockouts":
		return StockOut, true
	case "stockout-line", "stockout-lines", "stockout_lines":
		return StockOutLine, true
	case "packing", "pack":
		return Packing, true
	default:
		return 0, false
	}
}
