package models

import (
	"time"
)

// Flag is the lifecycle/activity marker on every synced row, orthogonal to
// workflow status. Deleted rows are soft tombstones and are never physically
// removed; temp and draft rows are hidden from default listing queries.
type Flag int

const (
	FlagDeleted Flag = 0
	FlagActive  Flag = 1
	FlagTemp    Flag = 2
	FlagDraft   Flag = 3
)

// Visible reports whether a row with this flag appears in default list views.
func (f Flag) Visible() bool {
	return f == FlagActive
}

// OrderState represents the order approval workflow state.
type OrderState int

const (
	OrderNew                   OrderState = 0
	OrderSentToStorekeeper     OrderState = 1
	OrderVerifiedByStorekeeper OrderState = 2
	OrderCompleted             OrderState = 3
	OrderRejected              OrderState = 4
	OrderCancelled             OrderState = 5
	OrderSentToChecker         OrderState = 6
	OrderCheckerIsChecking     OrderState = 7
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderState) Terminal() bool {
	return s == OrderCompleted || s == OrderRejected || s == OrderCancelled
}

// Approved reports whether the order has passed storekeeper verification and
// is not yet terminal. Edits to approved orders go through the overlay table.
func (s OrderState) Approved() bool {
	switch s {
	case OrderVerifiedByStorekeeper, OrderSentToChecker, OrderCheckerIsChecking:
		return true
	}
	return false
}

func (s OrderState) String() string {
	switch s {
	case OrderNew:
		return "new"
	case OrderSentToStorekeeper:
		return "sent_to_storekeeper"
	case OrderVerifiedByStorekeeper:
		return "verified_by_storekeeper"
	case OrderCompleted:
		return "completed"
	case OrderRejected:
		return "rejected"
	case OrderCancelled:
		return "cancelled"
	case OrderSentToChecker:
		return "sent_to_checker"
	case OrderCheckerIsChecking:
		return "checker_is_checking"
	}
	return "unknown"
}

// LineState represents the order-line / out-of-stock-line workflow state.
type LineState int

const (
	LineNew          LineState = 0
	LineNotChecked   LineState = 1
	LineInStock      LineState = 2
	LineOutOfStock   LineState = 3
	LineReported     LineState = 4
	LineNotAvailable LineState = 5
	LineCancelled    LineState = 6
	LineReplaced     LineState = 7
)

// Terminal reports whether no further transitions are allowed from s.
// Cancelled lines never transition again.
func (s LineState) Terminal() bool {
	return s == LineCancelled
}

func (s LineState) String() string {
	switch s {
	case LineNew:
		return "new"
	case LineNotChecked:
		return "not_checked"
	case LineInStock:
		return "in_stock"
	case LineOutOfStock:
		return "out_of_stock"
	case LineReported:
		return "reported"
	case LineNotAvailable:
		return "not_available"
	case LineCancelled:
		return "cancelled"
	case LineReplaced:
		return "replaced"
	}
	return "unknown"
}

// Order is a sales order mirrored from the remote store. ID is the
// server-assigned identifier; temp/draft rows carry a locally generated
// placeholder until the first successful push.
type Order struct {
	ID         string     `json:"id"`
	CustomerID int64      `json:"customer_id"`
	Number     string     `json:"number,omitempty"`
	State      OrderState `json:"state"`
	Flag       Flag       `json:"flag"`
	Total      float64    `json:"total,omitempty"`
	Note       string     `json:"note,omitempty"`
	Viewed     bool       `json:"viewed"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// OrderLine is one product line owned by an order.
type OrderLine struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID int64     `json:"product_id"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price,omitempty"`
	State     LineState `json:"state"`
	Flag      Flag      `json:"flag"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockOut is an out-of-stock master event owning zero or more sub lines.
type StockOut struct {
	ID          string    `json:"id"`
	WarehouseID int64     `json:"warehouse_id"`
	ReporterID  int64     `json:"reporter_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	Flag        Flag      `json:"flag"`
	Viewed      bool      `json:"viewed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockOutLine is a sub row of a StockOut master. An orphaned sub (master not
// yet pulled) is retained and excluded from joined views until the master
// arrives.
type StockOutLine struct {
	ID         string    `json:"id"`
	StockOutID string    `json:"stockout_id"`
	ProductID  int64     `json:"product_id"`
	Quantity   float64   `json:"quantity"`
	State      LineState `json:"state"`
	Flag       Flag      `json:"flag"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PackingCount is the sparse fulfilled-quantity side table entry keyed by
// line id, updated independently of the line's own fields.
type PackingCount struct {
	LineID    string    `json:"line_id"`
	Packed    float64   `json:"packed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockOutJoined is one row of the orphan-tolerant master/sub view.
type StockOutJoined struct {
	Line   StockOutLine `json:"line"`
	Master *StockOut    `json:"master,omitempty"`
}

// Config is the on-disk client configuration.
type Config struct {
	ServerURL          string `json:"server_url,omitempty"`
	PushURL            string `json:"push_url,omitempty"`
	APIKey             string `json:"api_key,omitempty"`
	DeviceID           string `json:"device_id,omitempty"`
	ActorType          int    `json:"actor_type,omitempty"`
	ActorID            int64  `json:"actor_id,omitempty"`
	PageSize           int    `json:"page_size,omitempty"`
	DedupWindowSeconds int    `json:"dedup_window_seconds,omitempty"`
}
