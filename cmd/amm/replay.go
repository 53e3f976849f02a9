package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"simpleamm/internal/config"
	"simpleamm/internal/dispatch"
	"simpleamm/internal/engine"
	"simpleamm/internal/ledger"
	"simpleamm/internal/registry"
	"simpleamm/internal/storage"
	"simpleamm/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	var authority common.Address
	if cfg.Authority != "" {
		if !common.IsHexAddress(cfg.Authority) {
			return fmt.Errorf("invalid authority address: %s", cfg.Authority)
		}
		authority = common.HexToAddress(cfg.Authority)
	}
	ammCfg, err := engine.Initialize(authority, cfg.FeeBasisPoints)
	if err != nil {
		return err
	}
	reg, err := registry.New(ammCfg.FeeBasisPoints)
	if err != nil {
		return err
	}
	auth, err := newAuthorizer(cfg.Allow)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := storage.NewJsonlStorage(cfg.EventsOut)
	opts := []engine.Option{engine.WithLogger(logger), engine.WithBound(cfg.Bound)}

	var l ledger.Ledger
	switch cfg.Ledger {
	case config.LedgerPostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN, postgres.Options{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pools, err := store.LoadPools(ctx)
		if err != nil {
			return fmt.Errorf("load pools: %w", err)
		}
		if err := reg.Restore(pools); err != nil {
			return fmt.Errorf("restore pools: %w", err)
		}
		last, err := store.LastSequence(ctx)
		if err != nil {
			return fmt.Errorf("load last sequence: %w", err)
		}

		l = store.Ledger()
		opts = append(opts,
			engine.WithSink(engine.MultiSink{events, store}),
			engine.WithSequenceStart(last),
		)
		logger.Info("postgres ledger ready", zap.Int("pools", len(pools)), zap.Uint64("last_sequence", last))
	default:
		if cfg.CheckpointEnabled {
			logger.Warn("checkpoint with the memory ledger resumes without earlier balances")
		}
		l = ledger.NewMemory()
		opts = append(opts, engine.WithSink(events))
	}

	eng, err := engine.New(ammCfg, l, reg, opts...)
	if err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	appendMode := cfg.CheckpointEnabled
	results, err := storage.NewJSONLWriter(cfg.Results, appendMode)
	if err != nil {
		return err
	}
	defer results.Close()

	failures, err := storage.NewJSONLWriter(cfg.Errors, appendMode)
	if err != nil {
		return err
	}
	defer failures.Close()

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("ledger", cfg.Ledger),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint16("fee_bps", ammCfg.FeeBasisPoints),
		zap.String("bound", cfg.Bound.String()),
		zap.String("events_out", events.Path()),
		zap.Int("allow", len(cfg.Allow)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	d := dispatch.NewDispatcher(eng, l, auth, logger)
	stats, err := d.Replay(ctx, inputFile, dispatch.ReplayConfig{
		Input:           cfg.In,
		Results:         results,
		Failures:        failures,
		Checkpoint:      dispatch.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled),
		CheckpointEvery: cfg.CheckpointEvery,
	})
	if err != nil {
		return err
	}

	logger.Info("replay complete",
		zap.Int("total", stats.Total),
		zap.Int("applied", stats.Applied),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("pools", len(eng.Pools())),
	)
	return nil
}

func newAuthorizer(allow []string) (engine.Authorizer, error) {
	if len(allow) == 0 {
		return engine.AllowAll{}, nil
	}
	callers := make([]common.Address, 0, len(allow))
	for _, item := range allow {
		if !common.IsHexAddress(item) {
			return nil, fmt.Errorf("invalid allow address: %s", item)
		}
		callers = append(callers, common.HexToAddress(item))
	}
	return engine.NewAllowList(callers...), nil
}
