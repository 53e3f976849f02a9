package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"simpleamm/internal/amm"
)

// Ledger backends.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
)

// Config holds engine and replay settings loaded from flags, env, or config file.
type Config struct {
	FeeBasisPoints    uint8
	Authority         string
	Bound             amm.Bound
	Ledger            string
	PGDSN             string
	In                string
	Results           string
	EventsOut         string
	Errors            string
	Checkpoint        string
	CheckpointEnabled bool
	CheckpointEvery   int
	Allow             []string
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := newViper()
	v.SetDefault("fee-bps", amm.DefaultFeeBasisPoints)
	v.SetDefault("bound", amm.BoundInclusive.String())
	v.SetDefault("ledger", LedgerMemory)
	v.SetDefault("results", "./data/results.jsonl")
	v.SetDefault("events-out", "./data/events.jsonl")
	v.SetDefault("errors", "./data/replay_errors.jsonl")
	v.SetDefault("checkpoint", "./data/replay_checkpoint.json")
	v.SetDefault("checkpoint-enabled", false)
	v.SetDefault("checkpoint-every", 100)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	fee, err := feeBasisPoints(v)
	if err != nil {
		return Config{}, err
	}
	bound, err := amm.ParseBound(v.GetString("bound"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		FeeBasisPoints:    fee,
		Authority:         v.GetString("authority"),
		Bound:             bound,
		Ledger:            strings.ToLower(v.GetString("ledger")),
		PGDSN:             v.GetString("pg-dsn"),
		In:                v.GetString("in"),
		Results:           v.GetString("results"),
		EventsOut:         v.GetString("events-out"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		CheckpointEvery:   v.GetInt("checkpoint-every"),
		Allow:             getStringSlice(v, "allow"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}

	switch cfg.Ledger {
	case LedgerMemory:
	case LedgerPostgres:
		if cfg.PGDSN == "" {
			return Config{}, fmt.Errorf("pg-dsn is required for the postgres ledger")
		}
	default:
		return Config{}, fmt.Errorf("unknown ledger %q", cfg.Ledger)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func read(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// feeBasisPoints reads fee-bps, which is stored in eight bits.
func feeBasisPoints(v *viper.Viper) (uint8, error) {
	fee := v.GetInt("fee-bps")
	if fee < 0 || fee > math.MaxUint8 {
		return 0, fmt.Errorf("%w: fee-bps %d out of range 0-%d", amm.ErrInvalidFee, fee, math.MaxUint8)
	}
	return uint8(fee), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
