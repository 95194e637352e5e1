package sqlite

import "database/sql"

// schema sets up the database. It runs on startup to ensure tables exist.
// Money columns hold integer minor units (cents). Timestamps hold Unix nanoseconds.
// Participants and line items keep an explicit position because join order
// decides who receives the fee remainder.
const schema = `
CREATE TABLE IF NOT EXISTS restaurants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    cuisine TEXT NOT NULL DEFAULT '',
    delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
    menu TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_orders (
    id TEXT PRIMARY KEY,
    restaurant_id TEXT NOT NULL,
    restaurant_name TEXT NOT NULL,
    created_by TEXT NOT NULL,
    creator_room TEXT NOT NULL DEFAULT '',
    delivery_time INTEGER NOT NULL,
    delivery_fee_cents INTEGER NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    delivered_at INTEGER,
    creator_change_cents INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS participants (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    user_name TEXT NOT NULL DEFAULT '',
    special_instructions TEXT NOT NULL DEFAULT '',
    subtotal_cents INTEGER NOT NULL,
    fee_share_cents INTEGER NOT NULL,
    total_amount_cents INTEGER NOT NULL,
    amount_paid_cents INTEGER NOT NULL,
    paid INTEGER NOT NULL,
    change_cents INTEGER NOT NULL,
    joined_at INTEGER NOT NULL,
    UNIQUE (order_id, user_id),
    FOREIGN KEY (order_id) REFERENCES group_orders(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS line_items (
    participant_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    unit_price_cents INTEGER NOT NULL,
    quantity INTEGER NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (participant_id, position),
    FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS user_statistics (
    user_id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    version INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_orders_created_at ON group_orders(created_at);
CREATE INDEX IF NOT EXISTS idx_group_orders_status ON group_orders(status);
CREATE INDEX IF NOT EXISTS idx_group_orders_created_by ON group_orders(created_by);
CREATE INDEX IF NOT EXISTS idx_participants_order_id ON participants(order_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
