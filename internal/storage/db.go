package storage

import (
	"context"
	"fmt"
)

// Config holds database connection settings for the alert stores.
// Empty hosts disable the corresponding backend.
type Config struct {
	SQLitePath string
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		SQLitePath: "nd_alerts.db",
		ClickHouse: ClickHouseConfig{
			Host:     "",
			Port:     9000,
			Database: "xraas",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "",
			Port:     5432,
			Database: "xraas_state",
			User:     "xraas",
			Password: "xraas",
		},
	}
}

// DB bundles the configured alert stores.
type DB struct {
	Log *SQLiteDB     // Local alert log.
	CH  *ClickHouseDB // ClickHouse for alert history.
	PG  *PostgresDB   // PostgreSQL for current per-source state.
}

// Open opens every backend enabled in cfg.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d := &DB{}

	if cfg.SQLitePath != "" {
		lg, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		d.Log = lg
	}

	if cfg.ClickHouse.Host != "" {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		d.CH = ch
	}

	if cfg.Postgres.Host != "" {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.PG = pg
	}

	return d, nil
}

// Close closes all open connections.
func (d *DB) Close() error {
	var errs []error
	if d.Log != nil {
		if err := d.Log.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if d.PG != nil {
		d.PG.Close()
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// CreateSchemas creates the schemas in the server databases. The SQLite
// schema is created on open.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if d.CH != nil {
		if err := d.CH.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	if d.PG != nil {
		if err := d.PG.CreateSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

// Sinks returns the open backends as a single sink. ClickHouse is written
// through the given batcher when it is not nil.
func (d *DB) Sinks(history *Batcher) Multi {
	var m Multi
	if d.Log != nil {
		m = append(m, d.Log)
	}
	if d.PG != nil {
		m = append(m, d.PG)
	}
	if d.CH != nil {
		if history != nil {
			m = append(m, history)
		} else {
			m = append(m, d.CH)
		}
	}
	return m
}
