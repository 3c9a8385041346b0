package sqlite

// schema creates the per-guild tables. Times are stored as unix milliseconds
// and user IDs as decimal text.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	price INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS codes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	used INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	used_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_codes_unused ON codes (product, used, id);

CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	product TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS purchases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	product TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price INTEGER NOT NULL,
	total_price INTEGER NOT NULL,
	codes TEXT NOT NULL DEFAULT '[]',
	purchased_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchases_time ON purchases (purchased_at);

CREATE TABLE IF NOT EXISTS leaderboard (
	user_id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	total_purchases INTEGER NOT NULL DEFAULT 0,
	total_spent INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS testimonials (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL,
	rating INTEGER NOT NULL DEFAULT 5,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
