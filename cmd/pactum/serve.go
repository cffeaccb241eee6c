package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/analysis"
	"github.com/Covenant-Systems/pactum/pkg/api"
	"github.com/Covenant-Systems/pactum/pkg/archive"
	"github.com/Covenant-Systems/pactum/pkg/auth"
	"github.com/Covenant-Systems/pactum/pkg/config"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/eventbus"
	"github.com/Covenant-Systems/pactum/pkg/identity"
	"github.com/Covenant-Systems/pactum/pkg/lifecycle"
	"github.com/Covenant-Systems/pactum/pkg/observability"
	"github.com/Covenant-Systems/pactum/pkg/routing"
	"github.com/Covenant-Systems/pactum/pkg/session"
	"github.com/Covenant-Systems/pactum/pkg/templates"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver for lite mode
)

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var port string
	fs.StringVar(&port, "port", "", "Listen port (overrides PORT)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	if port != "" {
		cfg.Port = port
	}

	logger := newLogger(cfg.LogLevel, stderr)
	slog.SetDefault(logger)

	fmt.Fprintf(stdout, "%sPactum lifecycle server starting...%s\n", ColorBold+ColorBlue, ColorReset)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, stdout)
	if err != nil {
		logger.Error("database setup failed", "error", err)
		return 1
	}
	defer db.Close()

	store := session.NewSQLStore(db)
	if err := store.Init(ctx); err != nil {
		logger.Error("session schema init failed", "error", err)
		return 1
	}

	bus := eventbus.NewBus().WithBackfill(store)

	library := templates.NewLibrary()
	pipeline := analysis.NewPipeline(library)

	router, err := buildRouter(cfg)
	if err != nil {
		logger.Error("routing policy setup failed", "error", err)
		return 1
	}
	name, version := router.ActivePolicy()
	logger.Info("routing policy active", "policy", name, "version", version)

	blobs, err := archive.NewStore(ctx, cfg.Archive())
	if err != nil {
		logger.Error("archive backend setup failed", "backend", cfg.ArchiveBackend, "error", err)
		return 1
	}
	exporter := archive.NewExporter(blobs)

	orc := lifecycle.New(store, bus, pipeline, router).
		WithArchiver(exporter).
		WithMaxNegotiationRounds(negotiationRounds(cfg, logger)).
		WithLogger(logger)
	defer orc.Close()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "pactum",
		ServiceVersion: "1.0.0",
		Environment:    envOr("ENVIRONMENT", "development"),
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		logger.Error("observability setup failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	handler := buildHandler(cfg, orc, library, obs, db, logger, stdout)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		fmt.Fprintf(stdout, "%sready:%s http://localhost:%s\n", ColorBold+ColorGreen, ColorReset, cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		return 1
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
		return 1
	}
	return 0
}

// openDatabase connects to Postgres when DATABASE_URL is set, and falls
// back to embedded SQLite (lite mode) otherwise.
func openDatabase(ctx context.Context, cfg *config.Config, stdout io.Writer) (*sql.DB, error) {
	if cfg.LiteMode() {
		fmt.Fprintf(stdout, "DATABASE_URL not set. Falling back to %sLite Mode%s (SQLite).\n", ColorBold+ColorCyan, ColorReset)
		dataDir := "data"
		if err := os.MkdirAll(dataDir, 0750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dbPath := filepath.Join(dataDir, "pactum.db")
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		slog.Info("lite mode", "path", dbPath)
		return db, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Info("postgres connected")
	return db, nil
}

func buildRouter(cfg *config.Config) (*routing.Router, error) {
	if cfg.PolicyFile == "" {
		return routing.NewRouter(nil)
	}
	eval, err := routing.NewEvaluator()
	if err != nil {
		return nil, err
	}
	policy, err := routing.LoadPolicyFile(cfg.PolicyFile, eval)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", cfg.PolicyFile, err)
	}
	return routing.NewRouter(policy)
}

// negotiationRounds resolves the counter-term limit: a review profile
// covering general contracts wins over the environment setting.
func negotiationRounds(cfg *config.Config, logger *slog.Logger) int {
	rounds := cfg.MaxNegotiationRounds
	profiles, err := config.LoadAllProfiles(cfg.ProfilesDir)
	if err != nil {
		logger.Warn("review profiles unavailable", "dir", cfg.ProfilesDir, "error", err)
		return rounds
	}
	logger.Info("review profiles loaded", "count", len(profiles))
	for _, p := range profiles {
		if p.Covers(contracts.TypeGeneral) && p.MaxNegotiationRounds > 0 {
			rounds = p.MaxNegotiationRounds
		}
	}
	return rounds
}

func buildHandler(cfg *config.Config, orc *lifecycle.Orchestrator, library *templates.Library, obs *observability.Provider, db *sql.DB, logger *slog.Logger, stdout io.Writer) http.Handler {
	srv := api.NewServer(orc, library).
		WithLogger(logger.With("component", "api")).
		WithObservability(obs)

	var handler http.Handler = srv.Routes()

	idem := idempotencyStore(cfg, db)
	handler = api.IdempotencyMiddleware(idem)(handler)

	handler = auth.RateLimitMiddleware(buildLimiter(cfg, logger))(handler)

	if cfg.AuthSecret != "" {
		ks, err := identity.NewDerivedKeySet(cfg.AuthSecret)
		if err != nil {
			logger.Error("auth keyset rejected", "error", err)
			os.Exit(1)
		}
		handler = auth.NewMiddleware(auth.NewVerifier(ks))(handler)
	} else {
		fmt.Fprintf(stdout, "%sWARNING: AUTH_SECRET not set; API is unauthenticated.%s\n", ColorBold+ColorYellow, ColorReset)
	}

	handler = auth.CORSMiddleware(nil)(handler)
	handler = api.LoggingMiddleware(logger)(handler)
	handler = api.RecoveryMiddleware(logger)(handler)
	handler = auth.RequestIDMiddleware(handler)
	return handler
}

func buildLimiter(cfg *config.Config, logger *slog.Logger) auth.Limiter {
	if cfg.RedisURL != "" {
		limiter, err := auth.NewRedisLimiter(cfg.RedisURL, cfg.RateLimitRPS, cfg.RateLimitBurst)
		if err != nil {
			logger.Warn("redis limiter unavailable, using local limiter", "error", err)
		} else {
			logger.Info("rate limiting via redis")
			return limiter
		}
	}
	return auth.NewLocalLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
}

const idempotencySchema = `
CREATE TABLE IF NOT EXISTS idempotency_keys (
	key TEXT PRIMARY KEY,
	status_code INTEGER NOT NULL,
	headers TEXT NOT NULL,
	body BYTEA NOT NULL,
	cached_at TIMESTAMP NOT NULL
);
`

// idempotencyStore uses Postgres for durable replay when available,
// in-memory otherwise. The SQLite fallback stays in memory: NOW() in
// the upsert is Postgres-only.
func idempotencyStore(cfg *config.Config, db *sql.DB) api.IdempotencyStorer {
	if !cfg.LiteMode() {
		if _, err := db.Exec(idempotencySchema); err == nil {
			return api.NewPostgresIdempotencyStore(db, time.Hour)
		}
	}
	return api.NewIdempotencyStore(time.Hour)
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
