package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"simpleamm/internal/amm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "amm",
		Short:        "Constant-product AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay JSONL intents against the engine",
		RunE:  runReplay,
	}

	replayCmd.Flags().Int("fee-bps", amm.DefaultFeeBasisPoints, "swap fee in basis points")
	replayCmd.Flags().String("authority", "", "deployment authority address (required for mint intents)")
	replayCmd.Flags().String("bound", "inclusive", "minimum bound (inclusive, reference)")
	replayCmd.Flags().String("ledger", "memory", "ledger backend (memory, postgres)")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	replayCmd.Flags().String("in", "", "input intents JSONL")
	replayCmd.Flags().String("results", "./data/results.jsonl", "results JSONL")
	replayCmd.Flags().String("events-out", "./data/events.jsonl", "engine events JSONL")
	replayCmd.Flags().String("errors", "./data/replay_errors.jsonl", "failed intents JSONL")
	replayCmd.Flags().String("checkpoint", "./data/replay_checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", false, "enable checkpointing")
	replayCmd.Flags().Int("checkpoint-every", 100, "lines between checkpoint saves")
	replayCmd.Flags().StringSlice("allow", nil, "callers allowed to act (comma-separated), empty allows everyone")
	replayCmd.Flags().Int("max-retries", 5, "maximum connect retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap or deposit against given or live reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().Int("fee-bps", amm.DefaultFeeBasisPoints, "swap fee in basis points")
	quoteCmd.Flags().String("bound", "inclusive", "minimum bound (inclusive, reference)")
	quoteCmd.Flags().String("rpc", "", "RPC URL for live pair reserves")
	quoteCmd.Flags().String("pair", "", "Uniswap-V2-style pair address")
	quoteCmd.Flags().Uint64("block", 0, "block to read, 0 means latest")
	quoteCmd.Flags().Uint64("reserve-a", 0, "reserve of token a")
	quoteCmd.Flags().Uint64("reserve-b", 0, "reserve of token b")
	quoteCmd.Flags().Uint64("lp-supply", 0, "liquidity token supply")
	quoteCmd.Flags().Uint64("amount-in", 0, "swap input amount")
	quoteCmd.Flags().String("side", "a", "asset sold by the swap (a, b)")
	quoteCmd.Flags().Uint64("amount-a", 0, "desired deposit of token a")
	quoteCmd.Flags().Uint64("amount-b", 0, "desired deposit of token b")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate engine events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/events.jsonl", "input engine events JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().Uint64("recompute-from", 0, "recompute from this event sequence")
	aggregateCmd.Flags().Int("max-retries", 5, "maximum connect retry attempts")
	aggregateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
