package storage

import (
	"context"
	"os"
	"testing"
	"time"
)

// setupTestPostgres creates a test database connection.
// Returns nil if no PostgreSQL connection is available.
func setupTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "xraas"
	}
	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "xraas"
	}
	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		database = "xraas_state"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pg, err := OpenPostgres(ctx, PostgresConfig{
		Host:     host,
		Port:     5432,
		User:     user,
		Password: password,
		Database: database,
	})
	if err != nil {
		return nil
	}

	if err := pg.CreateSchema(ctx); err != nil {
		pg.Close()
		return nil
	}

	return pg
}

func TestUpsertCurrent(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	ctx := context.Background()
	source := "test-" + time.Now().Format("150405.000000")
	now := time.Now().UTC().Truncate(time.Millisecond)

	r := Record{Source: source, Raw: 0x41, MsgType: 1, Color: 1, Text: "FLAPS", Decoded: true, Received: now}
	if err := pg.UpsertCurrent(ctx, r); err != nil {
		t.Fatalf("UpsertCurrent: %v", err)
	}
	r.Received = now.Add(time.Second)
	if err := pg.UpsertCurrent(ctx, r); err != nil {
		t.Fatalf("UpsertCurrent: %v", err)
	}

	got, err := pg.GetCurrent(ctx, source)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if got == nil {
		t.Fatal("expected current alert")
	}
	if got.MsgCount != 2 || got.Text != "FLAPS" {
		t.Errorf("got %+v", got)
	}
	if !got.FirstSeen.Equal(now) {
		t.Errorf("FirstSeen = %v, want %v", got.FirstSeen, now)
	}

	// A different value restarts the counter.
	r2 := Record{Source: source, Raw: 0x42, MsgType: 2, Color: 1, Text: "TOO HIGH", Decoded: true, Received: now.Add(2 * time.Second)}
	if err := pg.UpsertCurrent(ctx, r2); err != nil {
		t.Fatalf("UpsertCurrent: %v", err)
	}
	got, err = pg.GetCurrent(ctx, source)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if got.MsgCount != 1 || got.Raw != 0x42 {
		t.Errorf("got %+v", got)
	}

	missing, err := pg.GetCurrent(ctx, source+"-missing")
	if err != nil || missing != nil {
		t.Errorf("GetCurrent(missing) = %v, %v", missing, err)
	}
}
