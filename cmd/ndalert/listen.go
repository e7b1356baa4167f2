package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"xraas_nd/internal/api"
	"xraas_nd/internal/feed"
	"xraas_nd/internal/logging"
	"xraas_nd/internal/ndalert"
	"xraas_nd/internal/state"
	"xraas_nd/internal/storage"
)

// storageFlags registers the database flags shared by listen and serve.
func storageFlags(fs *flag.FlagSet) *storage.Config {
	cfg := storage.DefaultConfig()

	fs.StringVar(&cfg.SQLitePath, "db", envOrDefault("ND_DB", cfg.SQLitePath), "SQLite alert log path (empty = disabled)")

	fs.StringVar(&cfg.ClickHouse.Host, "ch-host", envOrDefault("CH_HOST", cfg.ClickHouse.Host), "ClickHouse host (empty = disabled)")
	fs.IntVar(&cfg.ClickHouse.Port, "ch-port", envOrDefaultInt("CH_PORT", cfg.ClickHouse.Port), "ClickHouse port")
	fs.StringVar(&cfg.ClickHouse.Database, "ch-db", envOrDefault("CH_DB", cfg.ClickHouse.Database), "ClickHouse database")
	fs.StringVar(&cfg.ClickHouse.User, "ch-user", envOrDefault("CH_USER", cfg.ClickHouse.User), "ClickHouse user")
	fs.StringVar(&cfg.ClickHouse.Password, "ch-password", envOrDefault("CH_PASSWORD", cfg.ClickHouse.Password), "ClickHouse password")

	fs.StringVar(&cfg.Postgres.Host, "pg-host", envOrDefault("PG_HOST", cfg.Postgres.Host), "PostgreSQL host (empty = disabled)")
	fs.IntVar(&cfg.Postgres.Port, "pg-port", envOrDefaultInt("PG_PORT", cfg.Postgres.Port), "PostgreSQL port")
	fs.StringVar(&cfg.Postgres.Database, "pg-db", envOrDefault("PG_DB", cfg.Postgres.Database), "PostgreSQL database")
	fs.StringVar(&cfg.Postgres.User, "pg-user", envOrDefault("PG_USER", cfg.Postgres.User), "PostgreSQL user")
	fs.StringVar(&cfg.Postgres.Password, "pg-password", envOrDefault("PG_PASSWORD", cfg.Postgres.Password), "PostgreSQL password")

	return &cfg
}

// apiFlags registers the HTTP API flags shared by listen and serve.
func apiFlags(fs *flag.FlagSet, defaultPort int) (*int, *bool, *string) {
	port := fs.Int("port", envOrDefaultInt("API_PORT", defaultPort), "HTTP API port (0 = disabled)")
	auth := fs.Bool("auth", envOrDefaultBool("API_AUTH", false), "Require an API key")
	keys := fs.String("api-keys", envOrDefault("API_KEYS", ""), "Comma-separated list of valid API keys")
	return port, auth, keys
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func runListen(args []string) int {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	natsURL := fs.String("nats", envOrDefault("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	subject := fs.String("subject", envOrDefault("NATS_SUBJECT", feed.DefaultSubject), "Subject carrying bus values")
	queue := fs.String("queue", envOrDefault("NATS_QUEUE", ""), "Optional queue group")
	source := fs.String("source", envOrDefault("ND_SOURCE", ""), "Source name for payloads that carry none")
	timeout := fs.Duration("timeout", state.DefaultTimeout, "How long an alert stays on the display")
	batchSize := fs.Int("batch-size", envOrDefaultInt("CH_BATCH_SIZE", 1000), "ClickHouse batch size")
	batchInterval := fs.Duration("batch-interval", 5*time.Second, "ClickHouse flush interval")
	logLevel := fs.String("log-level", envOrDefault("LOG_LEVEL", "info"), "Log level")
	storeCfg := storageFlags(fs)
	port, auth, keys := apiFlags(fs, 0)
	_ = fs.Parse(args)

	if err := logging.ParseLevel(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if *port > 0 && *auth && splitKeys(*keys) == nil {
		fmt.Fprintln(os.Stderr, "Error: -auth requires -api-keys")
		return 2
	}
	log := logging.New("listen")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, *storeCfg)
	if err != nil {
		log.WithError(err).Error("failed to open storage")
		return 1
	}
	defer func() { _ = db.Close() }()

	if err := db.CreateSchemas(ctx); err != nil {
		log.WithError(err).Error("failed to create schemas")
		return 1
	}

	clk := clock.New()
	tracker := state.NewTracker(*timeout, clk)
	tracker.OnChanged(func(c *state.Current) {
		log.WithFields(logrus.Fields{
			"source": c.Source,
			"raw":    ndalert.FormatValue(c.Alert.Raw),
			"color":  c.Alert.ColorName(),
		}).Info(c.Alert.Text)
	})
	tracker.OnCleared(func(source string) {
		log.WithField("source", source).Info("alert cleared")
	})

	var history *storage.Batcher
	if db.CH != nil {
		history = storage.NewBatcher(db.CH, *batchSize, *batchInterval, clk)
	}
	sinks := db.Sinks(history)

	handler := func(ctx context.Context, r feed.Reading, alert ndalert.Alert, ok bool) {
		tracker.Update(r.Source, alert, ok)
		if len(sinks) == 0 {
			return
		}
		rec := storage.NewRecord(r.Source, r.Value, alert, ok, r.Received)
		if err := sinks.Record(ctx, rec); err != nil {
			log.WithError(err).WithField("source", r.Source).Warn("failed to record alert")
		}
	}

	sub := feed.NewSubscriber(feed.Config{
		URL:           *natsURL,
		Subject:       *subject,
		Queue:         *queue,
		DefaultSource: *source,
	}, handler, logging.New("feed"))

	var wg sync.WaitGroup

	// Stopped only after the subscription has drained.
	histCtx, stopHistory := context.WithCancel(context.Background())
	defer stopHistory()
	var histDone chan struct{}
	if history != nil {
		histDone = make(chan struct{})
		go func() {
			defer close(histDone)
			history.Run(histCtx, func(err error) {
				log.WithError(err).Warn("clickhouse flush failed")
			})
		}()
	}

	if *port > 0 {
		var alerts api.AlertLog
		if db.Log != nil {
			alerts = db.Log
		}
		apiCfg := api.Config{
			Port:        *port,
			AuthEnabled: *auth,
			APIKeys:     splitKeys(*keys),
			Encode:      ndalert.DefaultEncodeOptions(),
		}
		if db.CH != nil {
			apiCfg.History = db.CH
		}
		if db.PG != nil {
			apiCfg.State = db.PG
		}
		srv := api.NewServer(tracker, alerts, apiCfg, logging.New("api"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("API server stopped")
				stop()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		expireLoop(ctx, clk, tracker, db.PG, log)
	}()

	runErr := sub.Run(ctx)
	stop()
	wg.Wait()
	stopHistory()
	if histDone != nil {
		<-histDone
	}

	st := sub.Stats()
	ts := tracker.GetStats()
	log.WithFields(logrus.Fields{
		"received":  st.Received,
		"decoded":   st.Decoded,
		"idle":      st.Idle,
		"malformed": st.Malformed,
		"cleared":   ts.Cleared,
		"expired":   ts.Expired,
	}).Info("listener stopped")

	if runErr != nil {
		log.WithError(runErr).Error("subscriber failed")
		return 1
	}
	return 0
}

// expireLoop drops alerts that have outlived the display timeout, both in
// memory and in the PostgreSQL state table.
func expireLoop(ctx context.Context, clk clock.Clock, tracker *state.Tracker, pg *storage.PostgresDB, log *logrus.Entry) {
	ticker := clk.Ticker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := tracker.Expire(); n > 0 {
				log.WithField("count", n).Debug("expired alerts")
			}
			if pg == nil {
				continue
			}
			if _, err := pg.DeleteStale(ctx, tracker.Timeout()); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("failed to delete stale alerts")
			}
		}
	}
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", envOrDefault("ND_DB", "nd_alerts.db"), "SQLite alert log path")
	metric := fs.Bool("metric", false, "Encode lengths in hundreds of meters")
	filterName := fs.String("filter", "routine", "Suppress encoded alerts below this level")
	logLevel := fs.String("log-level", envOrDefault("LOG_LEVEL", "info"), "Log level")
	port, auth, keys := apiFlags(fs, 8080)
	_ = fs.Parse(args)

	if err := logging.ParseLevel(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	filter, err := ndalert.ParseLevel(*filterName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if *port <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -port is required")
		return 2
	}
	if *auth && splitKeys(*keys) == nil {
		fmt.Fprintln(os.Stderr, "Error: -auth requires -api-keys")
		return 2
	}
	log := logging.New("serve")

	var alerts api.AlertLog
	if *dbPath != "" {
		lg, err := storage.OpenSQLite(*dbPath)
		if err != nil {
			log.WithError(err).Error("failed to open alert log")
			return 1
		}
		defer func() { _ = lg.Close() }()
		alerts = lg
	}

	opts := ndalert.DefaultEncodeOptions()
	opts.Imperial = !*metric
	opts.Filter = filter

	srv := api.NewServer(nil, alerts, api.Config{
		Port:        *port,
		AuthEnabled: *auth,
		APIKeys:     splitKeys(*keys),
		Encode:      opts,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("API server stopped")
		return 1
	}
	return 0
}
