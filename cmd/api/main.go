package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	boltscorerepo "github.com/pointsledger/receipt-processor/internal/adapters/bolt/scorerepo"
	"github.com/pointsledger/receipt-processor/internal/adapters/httpapi"
	memidempotency "github.com/pointsledger/receipt-processor/internal/adapters/memory/idempotency"
	memscorerepo "github.com/pointsledger/receipt-processor/internal/adapters/memory/scorerepo"
	postgres "github.com/pointsledger/receipt-processor/internal/adapters/postgres"
	pgidempotency "github.com/pointsledger/receipt-processor/internal/adapters/postgres/idempotency"
	pgscorerepo "github.com/pointsledger/receipt-processor/internal/adapters/postgres/scorerepo"
	"github.com/pointsledger/receipt-processor/internal/app/receipts"
	platformclock "github.com/pointsledger/receipt-processor/internal/platform/clock"
	"github.com/pointsledger/receipt-processor/internal/platform/config"
	"github.com/pointsledger/receipt-processor/internal/platform/grpchealth"
	"github.com/pointsledger/receipt-processor/internal/platform/logging"
	idempotencyport "github.com/pointsledger/receipt-processor/internal/ports/out/idempotency"
	scorerepoport "github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		var ue *config.UsageError
		if errors.As(err, &ue) {
			fmt.Fprintf(os.Stderr, "%s\n", ue.Help)
			if config.IsHelp(err) {
				os.Exit(0)
			}
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log, logCloser, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("exiting")
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	var (
		scoreRepo scorerepoport.Repository
		idemStore idempotencyport.Store
		cleanup   func()
	)

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return fmt.Errorf("invalid postgres config: %w", err)
		}
		cleanup = pool.Close
		if err := postgres.Migrate(context.Background(), pool); err != nil {
			pool.Close()
			return err
		}
		scoreRepo = pgscorerepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
	case config.BackendBolt:
		repo, err := boltscorerepo.Open(cfg.BoltPath)
		if err != nil {
			return err
		}
		cleanup = func() { _ = repo.Close() }
		scoreRepo = repo
		idemStore = memidempotency.NewStore()
	default:
		scoreRepo = memscorerepo.NewRepo()
		idemStore = memidempotency.NewStore()
	}

	if cleanup != nil {
		defer cleanup()
	}
	log.Info().Str("backend", cfg.StorageBackend).Msg("score store ready")

	svc := receipts.NewService(scoreRepo, platformclock.NewSystemClock(), log)
	api := httpapi.NewServer(svc, idemStore)
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{Logger: &log})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var health *grpchealth.Server
	if cfg.GRPCHealthAddr != "" {
		health = grpchealth.New(cfg.GRPCHealthAddr)
		go func() {
			log.Info().Str("addr", cfg.GRPCHealthAddr).Msg("grpc health listening")
			if err := health.Start(); err != nil {
				log.Error().Err(err).Msg("grpc health server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if health != nil {
		health.SetServing(true)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	log.Info().Msg("shutting down...")
	if health != nil {
		health.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
