package config

import (
	"fmt"

	"github.com/spf13/pflag"

	"simpleamm/internal/amm"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	FeeBasisPoints uint8
	Bound          amm.Bound
	RPCURL         string
	Pair           string
	Block          uint64
	ReserveA       uint64
	ReserveB       uint64
	LPSupply       uint64
	AmountIn       uint64
	Side           string
	AmountA        uint64
	AmountB        uint64
	LogLevel       string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v := newViper()
	v.SetDefault("fee-bps", amm.DefaultFeeBasisPoints)
	v.SetDefault("bound", amm.BoundInclusive.String())
	v.SetDefault("side", "a")
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return QuoteConfig{}, err
	}

	fee, err := feeBasisPoints(v)
	if err != nil {
		return QuoteConfig{}, err
	}
	bound, err := amm.ParseBound(v.GetString("bound"))
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		FeeBasisPoints: fee,
		Bound:          bound,
		RPCURL:         v.GetString("rpc"),
		Pair:           v.GetString("pair"),
		Block:          v.GetUint64("block"),
		ReserveA:       v.GetUint64("reserve-a"),
		ReserveB:       v.GetUint64("reserve-b"),
		LPSupply:       v.GetUint64("lp-supply"),
		AmountIn:       v.GetUint64("amount-in"),
		Side:           v.GetString("side"),
		AmountA:        v.GetUint64("amount-a"),
		AmountB:        v.GetUint64("amount-b"),
		LogLevel:       v.GetString("log-level"),
	}

	if cfg.Side != "a" && cfg.Side != "b" {
		return QuoteConfig{}, fmt.Errorf("side must be a or b, got %q", cfg.Side)
	}
	if cfg.Pair != "" && cfg.RPCURL == "" {
		return QuoteConfig{}, fmt.Errorf("rpc is required to read pair %s", cfg.Pair)
	}

	return cfg, nil
}
