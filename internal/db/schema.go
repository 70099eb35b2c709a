package db

// SchemaVersion is the current database schema version
const SchemaVersion = 3

const schema = `
-- Orders table (synced)
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    customer_id INTEGER NOT NULL DEFAULT 0,
    number TEXT DEFAULT '',
    state INTEGER NOT NULL DEFAULT 0,
    flag INTEGER NOT NULL DEFAULT 1,
    total REAL DEFAULT 0,
    note TEXT DEFAULT '',
    viewed INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Order lines table (synced, sub of orders)
CREATE TABLE IF NOT EXISTS order_lines (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    product_id INTEGER NOT NULL DEFAULT 0,
    quantity REAL NOT NULL DEFAULT 0,
    price REAL DEFAULT 0,
    state INTEGER NOT NULL DEFAULT 0,
    flag INTEGER NOT NULL DEFAULT 1,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Out-of-stock masters (synced)
CREATE TABLE IF NOT EXISTS stockouts (
    id TEXT PRIMARY KEY,
    warehouse_id INTEGER NOT NULL DEFAULT 0,
    reporter_id INTEGER DEFAULT 0,
    note TEXT DEFAULT '',
    flag INTEGER NOT NULL DEFAULT 1,
    viewed INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Out-of-stock sub lines (synced). Orphans (master not pulled yet) are kept
-- and excluded from joined views until the master arrives.
CREATE TABLE IF NOT EXISTS stockout_lines (
    id TEXT PRIMARY KEY,
    stockout_id TEXT NOT NULL,
    product_id INTEGER NOT NULL DEFAULT 0,
    quantity REAL NOT NULL DEFAULT 0,
    state INTEGER NOT NULL DEFAULT 0,
    flag INTEGER NOT NULL DEFAULT 1,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Packing counters, sparse side table keyed by line id
CREATE TABLE IF NOT EXISTS packing_counts (
    line_id TEXT PRIMARY KEY,
    packed REAL NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Edit overlay for approved orders, structurally identical to orders
CREATE TABLE IF NOT EXISTS order_overlays (
    id TEXT PRIMARY KEY,
    customer_id INTEGER NOT NULL DEFAULT 0,
    number TEXT DEFAULT '',
    state INTEGER NOT NULL DEFAULT 0,
    flag INTEGER NOT NULL DEFAULT 1,
    total REAL DEFAULT 0,
    note TEXT DEFAULT '',
    viewed INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Per-kind pull watermark
CREATE TABLE IF NOT EXISTS sync_watermarks (
    kind INTEGER PRIMARY KEY,
    updated_since DATETIME,
    last_sync_at DATETIME
);

-- Schema info table for version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_orders_flag ON orders(flag);
CREATE INDEX IF NOT EXISTS idx_orders_state ON orders(state);
CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_stockouts_flag ON stockouts(flag);
CREATE INDEX IF NOT EXISTS idx_stockout_lines_master ON stockout_lines(stockout_id);
`

// Migration defines a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all database migrations in order
var Migrations = []Migration{
	// Version 1 is the initial schema - no migration needed
	{
		Version:     2,
		Description: "Add durable pending notification queue",
		SQL: `
CREATE TABLE IF NOT EXISTS pending_notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    payload TEXT NOT NULL,
    received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_pending_received ON pending_notifications(received_at);
`,
	},
	{
		Version:     3,
		Description: "Add durable dedup key table so the admission window survives restart",
		SQL: `
CREATE TABLE IF NOT EXISTS dedup_keys (
    kind INTEGER NOT NULL,
    entity_id TEXT NOT NULL,
    seen_at DATETIME NOT NULL,
    PRIMARY KEY (kind, entity_id)
);
`,
	},
}
