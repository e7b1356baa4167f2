package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"xraas_nd/internal/ndalert"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for the current alert state.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS nd_alert_current (
		source          TEXT PRIMARY KEY,
		raw             BIGINT NOT NULL,
		msg_type        SMALLINT NOT NULL,
		color           SMALLINT NOT NULL,
		text            TEXT NOT NULL,
		decoded         BOOLEAN NOT NULL,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		msg_count       INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_nd_alert_current_last_seen ON nd_alert_current(last_seen);
	`
	_, err := d.pool.Exec(ctx, schema)
	return err
}

// CurrentAlert is the last bus value seen from a source.
type CurrentAlert struct {
	Record
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	MsgCount  int       `json:"msg_count"`
}

// UpsertCurrent replaces the current value for the record's source. The
// first_seen timestamp and counter restart whenever the raw value changes.
func (d *PostgresDB) UpsertCurrent(ctx context.Context, r Record) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO nd_alert_current (source, raw, msg_type, color, text, decoded, first_seen, last_seen, msg_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, 1)
		ON CONFLICT (source) DO UPDATE SET
			first_seen = CASE WHEN nd_alert_current.raw = EXCLUDED.raw
				THEN nd_alert_current.first_seen ELSE EXCLUDED.first_seen END,
			msg_count = CASE WHEN nd_alert_current.raw = EXCLUDED.raw
				THEN nd_alert_current.msg_count + 1 ELSE 1 END,
			raw = EXCLUDED.raw,
			msg_type = EXCLUDED.msg_type,
			color = EXCLUDED.color,
			text = EXCLUDED.text,
			decoded = EXCLUDED.decoded,
			last_seen = EXCLUDED.last_seen
	`, r.Source, int64(r.Raw), int16(r.MsgType), int16(r.Color), r.Text, r.Decoded, r.Received)
	if err != nil {
		return fmt.Errorf("upsert current alert: %w", err)
	}
	return nil
}

// Record implements Sink.
func (d *PostgresDB) Record(ctx context.Context, r Record) error {
	return d.UpsertCurrent(ctx, r)
}

// GetCurrent returns the current value for a source, or nil if none is stored.
func (d *PostgresDB) GetCurrent(ctx context.Context, source string) (*CurrentAlert, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT source, raw, msg_type, color, text, decoded, first_seen, last_seen, msg_count
		FROM nd_alert_current WHERE source = $1
	`, source)
	c, err := scanCurrent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCurrent returns the sources seen within the given duration, most
// recent first.
func (d *PostgresDB) ListCurrent(ctx context.Context, within time.Duration) ([]CurrentAlert, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT source, raw, msg_type, color, text, decoded, first_seen, last_seen, msg_count
		FROM nd_alert_current WHERE last_seen > $1
		ORDER BY last_seen DESC
	`, time.Now().Add(-within))
	if err != nil {
		return nil, fmt.Errorf("query current alerts: %w", err)
	}
	defer rows.Close()

	var out []CurrentAlert
	for rows.Next() {
		c, err := scanCurrent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteStale removes sources not seen within the given duration.
func (d *PostgresDB) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM nd_alert_current WHERE last_seen < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("delete stale alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCurrent(row pgx.Row) (*CurrentAlert, error) {
	var c CurrentAlert
	var raw int64
	var msgType, color int16
	err := row.Scan(&c.Source, &raw, &msgType, &color, &c.Text, &c.Decoded, &c.FirstSeen, &c.LastSeen, &c.MsgCount)
	if err != nil {
		return nil, err
	}
	c.Raw = uint32(raw)
	c.MsgType = ndalert.MsgType(msgType)
	c.Color = ndalert.Color(color)
	c.Received = c.LastSeen
	return &c, nil
}
