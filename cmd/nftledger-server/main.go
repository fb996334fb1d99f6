package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BrandonDHaskell/nftledger/internal/config"
	"github.com/BrandonDHaskell/nftledger/internal/db"
	"github.com/BrandonDHaskell/nftledger/internal/httpapi"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/service"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store/memory"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store/postgres"
	sqlitestore "github.com/BrandonDHaskell/nftledger/internal/nftledger/store/sqlite"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})).With("app", "nftledger-server")
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	ledger := service.New(st, collectionFrom(cfg),
		service.WithLogger(logger),
		service.WithLimits(limitsFrom(cfg)),
		service.WithSingleUseApprovals(cfg.SingleUseApprovals),
	)
	if err := ledger.Recover(ctx); err != nil {
		logger.Error("recover ledger", "err", err)
		os.Exit(1)
	}

	if cfg.Env == "dev" && len(cfg.DevSeedOwners) > 0 {
		owners := make([]types.Principal, 0, len(cfg.DevSeedOwners))
		for _, o := range cfg.DevSeedOwners {
			owners = append(owners, types.Principal(o))
		}
		n, err := service.SeedDev(ctx, ledger, owners, cfg.DevSeedTokens)
		if err != nil {
			logger.Warn("dev seed failed", "err", err)
		} else if n > 0 {
			logger.Info("dev seed", "minted", n)
		}
	}

	sweeper := service.NewSweeper(ledger, time.Duration(cfg.SweepIntervalMinutes)*time.Minute, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger: logger,
		Addr:   cfg.HTTPAddr,
		Ledger: ledger,
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "store", cfg.Store, "env", cfg.Env)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// openStore returns the configured backend and a func that releases it.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		st := memory.New()
		return st, func() { _ = st.Close() }, nil

	case config.StorePostgres:
		st, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil

	default:
		sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, nil, err
		}
		st := sqlitestore.New(sqlDB, db.NewWorker(sqlDB))
		return st, func() {
			_ = st.Close()
			_ = sqlDB.Close()
		}, nil
	}
}

func collectionFrom(cfg config.Config) service.Collection {
	coll := service.Collection{
		Name:        cfg.CollectionName,
		Symbol:      cfg.CollectionSymbol,
		Description: cfg.CollectionDescription,
		Minter:      types.Principal(cfg.Minter),
		TestMode:    cfg.TestMode,
	}
	if cfg.SupplyCap > 0 {
		supplyCap := cfg.SupplyCap
		coll.SupplyCap = &supplyCap
	}
	return coll
}

func limitsFrom(cfg config.Config) service.Limits {
	return service.Limits{
		MaxMemoSize:        cfg.MaxMemoSize,
		MaxUpdateBatchSize: cfg.MaxUpdateBatchSize,
		DefaultTake:        cfg.DefaultTake,
		MaxTake:            cfg.MaxTake,
		MaxApprovals:       cfg.MaxApprovals,
		MaxRevokeApproval:  cfg.MaxRevokeApprovals,
		TxWindow:           time.Duration(cfg.TxWindowSeconds) * time.Second,
		PermittedDrift:     time.Duration(cfg.PermittedDriftSeconds) * time.Second,
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
