package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"xraas_nd/internal/ndalert"
)

// SQLiteDB wraps a SQLite database used as the local alert log.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
// An empty path opens an in-memory database.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		raw INTEGER NOT NULL,
		msg_type INTEGER NOT NULL,
		color INTEGER NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		decoded INTEGER NOT NULL,
		received TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_source ON alerts(source);
	CREATE INDEX IF NOT EXISTS idx_alerts_msg_type ON alerts(msg_type);
	CREATE INDEX IF NOT EXISTS idx_alerts_received ON alerts(received);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert stores a record and returns its row ID.
func (d *SQLiteDB) Insert(ctx context.Context, r Record) (int64, error) {
	decoded := 0
	if r.Decoded {
		decoded = 1
	}
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO alerts (source, raw, msg_type, color, text, decoded, received)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.Source, int64(r.Raw), int(r.MsgType), int(r.Color), r.Text, decoded, r.Received.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}
	return result.LastInsertId()
}

// Record implements Sink.
func (d *SQLiteDB) Record(ctx context.Context, r Record) error {
	_, err := d.Insert(ctx, r)
	return err
}

// StoredRecord is a record read back from the log.
type StoredRecord struct {
	ID int64 `json:"id"`
	Record
}

// Recent returns the newest records first. A non-positive limit selects 100.
func (d *SQLiteDB) Recent(ctx context.Context, limit int) ([]StoredRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, source, raw, msg_type, color, text, decoded, received
		FROM alerts ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredRecord
	for rows.Next() {
		var sr StoredRecord
		var raw int64
		var msgType, color, decoded int
		var received string
		if err := rows.Scan(&sr.ID, &sr.Source, &raw, &msgType, &color, &sr.Text, &decoded, &received); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sr.Raw = uint32(raw)
		sr.MsgType = ndalert.MsgType(msgType)
		sr.Color = ndalert.Color(color)
		sr.Decoded = decoded != 0
		sr.Received, _ = time.Parse(time.RFC3339Nano, received)
		out = append(out, sr)
	}
	return out, rows.Err()
}

// CountByType returns the number of decoded records per message type.
func (d *SQLiteDB) CountByType(ctx context.Context) (map[ndalert.MsgType]int, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT msg_type, COUNT(*) FROM alerts WHERE decoded = 1 GROUP BY msg_type
	`)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[ndalert.MsgType]int)
	for rows.Next() {
		var msgType, n int
		if err := rows.Scan(&msgType, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[ndalert.MsgType(msgType)] = n
	}
	return counts, rows.Err()
}
