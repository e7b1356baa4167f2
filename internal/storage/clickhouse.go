package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for alert history.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	err := d.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS nd_alert_history (
		source      LowCardinality(String),
		raw         UInt32,
		msg_type    UInt8,
		color       UInt8,
		text        LowCardinality(String),
		decoded     Bool,
		received    DateTime64(3),
		created_at  DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(received)
	ORDER BY (source, received)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertBatch inserts multiple records in a single batch.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO nd_alert_history (source, raw, msg_type, color, text, decoded, received)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err := batch.Append(r.Source, r.Raw, uint8(r.MsgType), uint8(r.Color), r.Text, r.Decoded, r.Received)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Record implements Sink. Each call sends a one-row batch; use a
// Batcher in front of the history table for busy feeds.
func (d *ClickHouseDB) Record(ctx context.Context, r Record) error {
	return d.InsertBatch(ctx, []Record{r})
}

// TypeCount is the number of alerts of one type for a source.
type TypeCount struct {
	Source  string `json:"source"`
	MsgType uint8  `json:"msg_type"`
	Count   uint64 `json:"count"`
}

// CountSince returns per-source, per-type counts of decoded alerts
// received after since.
func (d *ClickHouseDB) CountSince(ctx context.Context, since time.Time) ([]TypeCount, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT source, msg_type, count() AS n
		FROM nd_alert_history
		WHERE decoded AND received >= ?
		GROUP BY source, msg_type
		ORDER BY source, msg_type
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Source, &tc.MsgType, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
