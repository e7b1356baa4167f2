// Package api provides REST API endpoints for decoding ND alert values and
// querying the alerts seen on the feed.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"xraas_nd/internal/logging"
	"xraas_nd/internal/ndalert"
	"xraas_nd/internal/state"
	"xraas_nd/internal/storage"
)

// maxBatch is the largest number of values accepted by /decode/batch.
const maxBatch = 1000

// AlertLog is the read side of the local alert log.
type AlertLog interface {
	Recent(ctx context.Context, limit int) ([]storage.StoredRecord, error)
	CountByType(ctx context.Context) (map[ndalert.MsgType]int, error)
}

// HistoryStore reads aggregated alert history.
type HistoryStore interface {
	CountSince(ctx context.Context, since time.Time) ([]storage.TypeCount, error)
}

// StateStore reads the persisted per-source state.
type StateStore interface {
	ListCurrent(ctx context.Context, within time.Duration) ([]storage.CurrentAlert, error)
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
	Encode      ndalert.EncodeOptions

	// Optional stores; their endpoints answer 404 when unset.
	History HistoryStore
	State   StateStore
}

// Server provides REST API access to the decoder and the alert state.
type Server struct {
	tracker     *state.Tracker
	alerts      AlertLog
	port        int
	authEnabled bool
	apiKeys     map[string]bool
	encode      ndalert.EncodeOptions
	history     HistoryStore
	states      StateStore
	log         *logrus.Entry
}

// NewServer creates a new API server. tracker and alerts may be nil, in
// which case the endpoints that need them answer 404.
func NewServer(tracker *state.Tracker, alerts AlertLog, cfg Config, log *logrus.Entry) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	if log == nil {
		log = logging.New("api")
	}

	return &Server{
		tracker:     tracker,
		alerts:      alerts,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
		encode:      cfg.Encode,
		history:     cfg.History,
		states:      cfg.State,
		log:         log,
	}
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithFields(logrus.Fields{
		"addr": "http://localhost" + srv.Addr,
		"auth": s.authEnabled,
	}).Info("API starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Health check (no auth required).
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.authEnabled {
			r.Use(s.authMiddleware)
		}

		r.Get("/decode/{value}", s.handleDecode)
		r.Post("/decode/batch", s.handleDecodeBatch)
		r.Post("/encode", s.handleEncode)

		r.Get("/alerts/current", s.handleCurrent)
		r.Get("/alerts/current/{source}", s.handleCurrentSource)
		r.Get("/alerts/recent", s.handleRecent)
		r.Get("/alerts/stats", s.handleStats)
		r.Get("/alerts/history", s.handleHistory)
		r.Get("/sources", s.handleSources)
	})

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
