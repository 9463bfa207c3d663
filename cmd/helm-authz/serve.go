package main

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kalamgit143/validAIte-sub004/pkg/api"
	"github.com/kalamgit143/validAIte-sub004/pkg/approval"
	"github.com/kalamgit143/validAIte-sub004/pkg/artifacts"
	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/auth"
	"github.com/kalamgit143/validAIte-sub004/pkg/config"
	"github.com/kalamgit143/validAIte-sub004/pkg/directory"
	"github.com/kalamgit143/validAIte-sub004/pkg/evidence"
	"github.com/kalamgit143/validAIte-sub004/pkg/lock"
	"github.com/kalamgit143/validAIte-sub004/pkg/observability"
	"github.com/kalamgit143/validAIte-sub004/pkg/policy"
	"github.com/kalamgit143/validAIte-sub004/pkg/server"
	"github.com/kalamgit143/validAIte-sub004/pkg/store"
	"github.com/kalamgit143/validAIte-sub004/pkg/workflow"

	_ "github.com/lib/pq" // Postgres Driver
	_ "modernc.org/sqlite"
)

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func runServer(stdout, stderr io.Writer) int {
	cfg := config.Load()
	logger := newLogger(stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	_, _ = fmt.Fprintf(stdout, "%sHELM Deployment Authorization starting...%s\n", ColorBold+ColorBlue, ColorReset)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, dialect, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo := store.NewSQLRepository(db, dialect)
	if err := repo.Init(ctx); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	idem := api.NewSQLIdempotencyStore(db, dialect, 24*time.Hour)
	if err := idem.Init(ctx); err != nil {
		return fmt.Errorf("init idempotency store: %w", err)
	}

	if cfg.DirectoryFile == "" {
		return errors.New("DIRECTORY_FILE is required")
	}
	dir, err := directory.LoadFile(cfg.DirectoryFile)
	if err != nil {
		return err
	}

	engine, err := policy.NewEngine(logger.With("component", "policy"))
	if err != nil {
		return err
	}
	if cfg.PolicyRulesFile != "" {
		profile, err := config.LoadPolicyProfile(cfg.PolicyRulesFile)
		if err != nil {
			return err
		}
		if err := engine.Load(profile.RulePack()); err != nil {
			return fmt.Errorf("load policy profile %s: %w", profile.Name, err)
		}
		logger.Info("policy profile loaded", "name", profile.Name, "version", engine.Version())
	}

	artStore, err := artifacts.NewStore(ctx, artifacts.StoreConfig{
		Type:       artifacts.StoreType(cfg.ArtifactStorageType),
		DataDir:    cfg.DataDir,
		S3Bucket:   cfg.S3Bucket,
		S3Region:   cfg.S3Region,
		S3Endpoint: cfg.S3Endpoint,
		S3Prefix:   cfg.S3Prefix,
		GCSBucket:  cfg.GCSBucket,
		GCSPrefix:  cfg.GCSPrefix,
	})
	if err != nil {
		return fmt.Errorf("init artifact store: %w", err)
	}

	otelCfg := observability.DefaultConfig()
	otelCfg.Enabled = cfg.OTelEnabled
	otelCfg.OTLPEndpoint = cfg.OTelEndpoint
	otelCfg.Insecure = cfg.OTelInsecure
	otelCfg.ServiceName = cfg.OTelServiceName
	otelCfg.ServiceVersion = version
	otelCfg.Environment = cfg.Environment
	obs, err := observability.New(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	opts := []workflow.Option{
		workflow.WithPolicyEngine(engine),
		workflow.WithArchive(artifacts.NewArchive(artStore)),
		workflow.WithAuditSink(audit.NewLogSink(logger.With("component", "audit"))),
		workflow.WithObservability(obs),
		workflow.WithLogger(logger.With("component", "workflow")),
	}
	if cfg.EvidenceDir != "" {
		opts = append(opts, workflow.WithEvidenceProvider(evidence.NewFileProvider(cfg.EvidenceDir)))
	}

	certKey, err := cfg.CertSigningKey()
	if err != nil {
		return err
	}
	if certKey != nil {
		opts = append(opts, workflow.WithCertificateKey(certKey, cfg.CertKeyID))
	}
	signers, err := approvalSigners(cfg, certKey)
	if err != nil {
		return err
	}
	if signers != nil {
		opts = append(opts, workflow.WithSignerFactory(signers))
	} else {
		logger.Warn("no signing key configured; approvals carry unkeyed digests")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = lock.NewRedisClient(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		defer func() { _ = rdb.Close() }()
		opts = append(opts, workflow.WithLocker(lock.NewRedisLocker(rdb, lock.WithLogger(logger.With("component", "lock")))))
	}

	wf, err := workflow.New(repo, dir, opts...)
	if err != nil {
		return err
	}

	pub, err := cfg.JWTPublicKey()
	if err != nil {
		return err
	}
	var validator *auth.JWTValidator
	if pub != nil {
		validator = auth.NewJWTValidator(pub)
	} else {
		logger.Warn("JWT_PUBLIC_KEY_HEX not set; all API calls will be rejected")
	}

	limiter := api.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx, time.Minute, 10*time.Minute)
	go runIdempotencyCleanup(ctx, idem, logger)

	srv := server.New(wf, server.Options{
		Validator:   validator,
		RateLimiter: limiter,
		Idempotency: idem,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.With("component", "server"),
		Ready: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	})

	httpSrv := srv.NewHTTPServer(":" + cfg.Port)
	healthSrv := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           healthMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("health server listening", "addr", healthSrv.Addr)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()
	go func() {
		logger.Info("api server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	return httpSrv.Shutdown(shutdownCtx)
}

func healthMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// approvalSigners prefers the Ed25519 certificate key and falls back to
// HKDF-derived HMAC keys, one per organization. Both nil means unkeyed digests.
func approvalSigners(cfg *config.Config, certKey ed25519.PrivateKey) (approval.SignerFactory, error) {
	if certKey != nil {
		s, err := approval.NewEd25519Signer(certKey, cfg.CertKeyID)
		if err != nil {
			return nil, err
		}
		return approval.StaticSigners(s), nil
	}
	master, err := cfg.ApprovalMasterKey()
	if err != nil || master == nil {
		return nil, err
	}
	return approval.KeyedSigners(master)
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, store.Dialect, error) {
	if cfg.LiteMode {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o750); err != nil {
			return nil, 0, fmt.Errorf("failed to create data dir: %w", err)
		}
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// SQLite allows one writer; serialize through a single connection.
		db.SetMaxOpenConns(1)
		slog.Info("lite mode: using sqlite", "path", cfg.SQLitePath)
		return db, store.DialectSQLite, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to connect to DB: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("DB ping failed: %w", err)
	}
	slog.Info("postgres: connected")
	return db, store.DialectPostgres, nil
}

func runIdempotencyCleanup(ctx context.Context, s *api.SQLIdempotencyStore, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Cleanup(ctx)
			if err != nil {
				logger.Warn("idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("idempotency keys expired", "count", n)
			}
		}
	}
}
