package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ecogrove/market/internal/api"
	"github.com/ecogrove/market/internal/config"
	"github.com/ecogrove/market/internal/infra/logging"
	"github.com/ecogrove/market/internal/infra/pgutils"
	"github.com/ecogrove/market/internal/services/cart"
	"github.com/ecogrove/market/internal/services/ledger"
	"github.com/ecogrove/market/internal/store"
	filestore "github.com/ecogrove/market/internal/store/file"
	pgstore "github.com/ecogrove/market/internal/store/postgres"
	redisstore "github.com/ecogrove/market/internal/store/redis"
	"github.com/ecogrove/market/pkg/envconf"
	"github.com/ecogrove/market/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	ledgerSvc := ledger.New(st, nil)

	err = ledgerSvc.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize ledger: %w", err)
	}

	cartSvc := cart.New(st)

	ledgerSvc.OnChange(func() { slog.Debug("balance changed") })
	cartSvc.OnChange(func() { slog.Debug("cart changed") })

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, ledgerSvc, cartSvc)

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "store", cfg.Store.Backend)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

// openStore builds the configured store backend and registers its
// teardown on the shutdown queue.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), nil

	case "file":
		fs, err := filestore.Open(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}

		shutdownqueue.Add(func(context.Context) error { return fs.Close() })

		return fs, nil

	case "postgres":
		db, err := pgutils.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}

		shutdownqueue.Add(func(context.Context) error { return db.Close() })

		return pgstore.New(db), nil

	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

		err := rdb.Ping(ctx).Err()
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}

		shutdownqueue.Add(func(context.Context) error { return rdb.Close() })

		return redisstore.New(rdb), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
