package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/causerie-app/causerie/internal/api"
	"github.com/causerie-app/causerie/internal/auth"
	"github.com/causerie-app/causerie/internal/db"
	"github.com/causerie-app/causerie/internal/gateway"
	"github.com/causerie-app/causerie/internal/history"
	"github.com/causerie-app/causerie/internal/metrics"
	"github.com/causerie-app/causerie/internal/repository"
	"github.com/causerie-app/causerie/internal/stats"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr      string
	dbDriver      string
	dbDSN         string
	jwtIssuer     string
	jwtPrivateKey string
	jwtPublicKey  string
	logLevel      string
	statsInterval time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "causerie-server",
		Short: "Causerie server — realtime room-based chat and call-signaling relay",
		Long: `Causerie server hosts named chat rooms over websocket connections.
It persists and replays message history, tracks distinct online users
across multi-tab sessions, and relays WebRTC call-setup signaling
between peers. A REST API covers authentication and room management.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("CAUSERIE_HTTP_ADDR", ":8080"), "HTTP API and websocket listen address")
	root.PersistentFlags().StringVar(&cfg.dbDriver, "db-driver", envOrDefault("CAUSERIE_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	root.PersistentFlags().StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("CAUSERIE_DB_DSN", "./causerie.db"), "Database DSN or file path for SQLite")
	root.PersistentFlags().StringVar(&cfg.jwtIssuer, "jwt-issuer", envOrDefault("CAUSERIE_JWT_ISSUER", "causerie"), "Issuer claim for access tokens")
	root.PersistentFlags().StringVar(&cfg.jwtPrivateKey, "jwt-private-key", envOrDefault("CAUSERIE_JWT_PRIVATE_KEY", ""), "Path to PEM-encoded RSA private key (ephemeral keys are generated when empty)")
	root.PersistentFlags().StringVar(&cfg.jwtPublicKey, "jwt-public-key", envOrDefault("CAUSERIE_JWT_PUBLIC_KEY", ""), "Path to PEM-encoded RSA public key")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("CAUSERIE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&cfg.statsInterval, "stats-interval", 30*time.Second, "Gateway stats sampling interval")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("causerie-server %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting causerie server",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
		zap.String("log_level", cfg.logLevel),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- Database ---
	database, err := db.New(db.Config{
		Driver:   cfg.dbDriver,
		DSN:      cfg.dbDSN,
		Logger:   logger,
		LogLevel: gormlogger.Warn,
	})
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(database)
	rooms := repository.NewRoomRepository(database)
	messages := repository.NewMessageRepository(database)

	// --- Auth ---
	var jwtMgr *auth.JWTManager
	if cfg.jwtPrivateKey != "" && cfg.jwtPublicKey != "" {
		jwtMgr, err = auth.NewJWTManagerFromFiles(cfg.jwtPrivateKey, cfg.jwtPublicKey, cfg.jwtIssuer)
	} else {
		logger.Warn("no JWT key pair configured, generating ephemeral keys — tokens will not survive a restart")
		jwtMgr, err = auth.NewJWTManagerGenerated(cfg.jwtIssuer)
	}
	if err != nil {
		return err
	}
	authSvc := auth.NewService(users, jwtMgr)

	// --- Gateway ---
	set := metrics.New(prometheus.DefaultRegisterer)

	verifier := gateway.VerifierFunc(func(token string) (gateway.Identity, error) {
		claims, err := authSvc.ValidateAccessToken(token)
		if err != nil {
			return gateway.Identity{}, err
		}
		return gateway.Identity{
			UserID:   claims.UserID,
			Username: claims.Username,
			Color:    claims.Color,
		}, nil
	})

	gw := gateway.New(verifier, history.NewStore(messages), set, logger)

	// --- Stats reporter ---
	reporter, err := stats.New(gw, set, cfg.statsInterval, logger)
	if err != nil {
		return err
	}
	if err := reporter.Start(); err != nil {
		return err
	}
	defer func() {
		if err := reporter.Stop(); err != nil {
			logger.Warn("stats reporter shutdown error", zap.Error(err))
		}
	}()

	// --- HTTP ---
	router := api.NewRouter(api.RouterConfig{
		AuthService: authSvc,
		Gateway:     gw,
		Logger:      logger,
		Users:       users,
		Rooms:       rooms,
		Messages:    messages,
	})

	srv := &http.Server{
		Addr:              cfg.httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.httpAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down causerie server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}

	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
