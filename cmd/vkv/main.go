package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/vkv/internal/jobstore"
	"github.com/user/vkv/internal/observability"
	"github.com/user/vkv/internal/scheduler"
	"github.com/user/vkv/internal/server"
	"github.com/user/vkv/internal/vdb"
)

var logLevel string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vkv",
	Short: "vkv — verifiable key-value store with a durable job scheduler",
	Long:  "A verifiable, tamper-evident key-value store backed by a sparse Merkle tree, coupled with an embedded SQLite job scheduler.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vkv server",
	RunE:  runServe,
}

var (
	bindAddr          string
	dataDir           string
	kvBackend         string
	schedulerEnabled  = true
	schedulerInterval = jobstore.PollEvery
	shutdownTimeout   = 5 * time.Second
	otelEnabled       bool
	otelEndpoint      string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	serveCmd.Flags().StringVar(&bindAddr, "bind", ":8080", "HTTP server bind address")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory for the job queue SQLite file and KV engine state")
	serveCmd.Flags().StringVar(&kvBackend, "kv-backend", "badger", "Raw value store backend: memory, file, or badger")
	serveCmd.Flags().BoolVar(&schedulerEnabled, "scheduler-enabled", true, "Run the job scheduler loop in-process")
	serveCmd.Flags().DurationVar(&schedulerInterval, "scheduler-interval", jobstore.PollEvery, "Scheduler claim-loop poll interval")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful HTTP shutdown timeout before force-close (e.g. 500ms, 2s)")
	serveCmd.Flags().BoolVar(&otelEnabled, "otel-enabled", false, "Enable OpenTelemetry tracing")
	serveCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP HTTP endpoint (host:port) for traces; if empty uses stdout exporter")

	rootCmd.AddCommand(serveCmd)
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func runServe(cmd *cobra.Command, args []string) error {
	slog.Info("starting vkv server",
		"bind", bindAddr,
		"data_dir", dataDir,
		"kv_backend", kvBackend,
		"scheduler_enabled", schedulerEnabled,
		"scheduler_interval", schedulerInterval,
		"shutdown_timeout", shutdownTimeout,
		"otel_enabled", otelEnabled,
		"otel_endpoint", otelEndpoint,
	)

	otelShutdown, err := observability.InitTracer(otelEnabled, "vkv-server", otelEndpoint)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	kv, closeKV, err := openKV(kvBackend, dataDir)
	if err != nil {
		return fmt.Errorf("open kv engine: %w", err)
	}
	defer closeKV()

	db, err := jobstore.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	jobs := jobstore.NewStore(db)

	srv := server.New(kv, jobs, bindAddr)

	var schedCancel context.CancelFunc = func() {}
	if schedulerEnabled {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.Interval = schedulerInterval
		sched := scheduler.New(jobs, schedCfg)
		var schedCtx context.Context
		schedCtx, schedCancel = context.WithCancel(context.Background())
		go sched.Run(schedCtx)
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("vkv server ready", "bind", bindAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("received shutdown signal", "signal", sig)

	slog.Info("stopping HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error; forcing close", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			slog.Error("HTTP force close error", "error", closeErr)
		}
	}

	slog.Info("stopping scheduler")
	schedCancel()

	slog.Info("stopping job store")
	if err := db.Close(); err != nil {
		slog.Error("job store close error", "error", err)
	}

	if err := otelShutdown(context.Background()); err != nil {
		slog.Warn("otel shutdown error", "error", err)
	}

	slog.Info("vkv server stopped")
	return nil
}

// openKV constructs the raw value store and node store pair for backend
// and returns the resulting engine along with a func that closes both.
func openKV(backend, dataDir string) (*vdb.VerifiableKV, func(), error) {
	switch backend {
	case "memory":
		kv, err := vdb.New(vdb.NewInMemoryStorage())
		if err != nil {
			return nil, nil, err
		}
		return kv, func() {}, nil

	case "file":
		storage, err := vdb.NewFileStorage(filepath.Join(dataDir, "kv-values.json"))
		if err != nil {
			return nil, nil, fmt.Errorf("open file storage: %w", err)
		}
		nodeStore, err := vdb.OpenPebbleNodeStore(filepath.Join(dataDir, "kv-nodes"), true)
		if err != nil {
			return nil, nil, fmt.Errorf("open pebble node store: %w", err)
		}
		signingKey, verifyKey, err := loadOrCreateSigningKey(dataDir)
		if err != nil {
			nodeStore.Close()
			return nil, nil, err
		}
		kv := vdb.NewWithStoreAndKey(storage, nodeStore, signingKey, verifyKey)
		return kv, func() { nodeStore.Close() }, nil

	case "badger":
		storage, err := vdb.OpenBadgerStorage(filepath.Join(dataDir, "kv-values"))
		if err != nil {
			return nil, nil, fmt.Errorf("open badger storage: %w", err)
		}
		nodeStore, err := vdb.OpenPebbleNodeStore(filepath.Join(dataDir, "kv-nodes"), true)
		if err != nil {
			storage.Close()
			return nil, nil, fmt.Errorf("open pebble node store: %w", err)
		}
		signingKey, verifyKey, err := loadOrCreateSigningKey(dataDir)
		if err != nil {
			storage.Close()
			nodeStore.Close()
			return nil, nil, err
		}
		kv := vdb.NewWithStoreAndKey(storage, nodeStore, signingKey, verifyKey)
		return kv, func() {
			nodeStore.Close()
			storage.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown kv-backend %q (want memory, file, or badger)", backend)
	}
}

// loadOrCreateSigningKey reads the Ed25519 signing key persisted at
// <dataDir>/signing.key, or generates and persists one on first run, so
// that the engine's verifying key is stable across restarts against the
// same data directory.
func loadOrCreateSigningKey(dataDir string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	path := filepath.Join(dataDir, "signing.key")
	raw, err := os.ReadFile(path)
	if err == nil {
		if len(raw) != ed25519.PrivateKeySize {
			return nil, nil, fmt.Errorf("signing key at %s has wrong size %d", path, len(raw))
		}
		priv := ed25519.PrivateKey(raw)
		return priv, priv.Public().(ed25519.PublicKey), nil
	}
	if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("read signing key: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate signing key: %w", err)
	}
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		return nil, nil, fmt.Errorf("persist signing key: %w", err)
	}
	return priv, pub, nil
}
