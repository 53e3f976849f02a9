package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"simpleamm/internal/amm"
	"simpleamm/internal/chain"
	"simpleamm/internal/config"
	"simpleamm/internal/dex"
	"simpleamm/internal/model"
)

type quoteReport struct {
	Pair           string        `json:"pair,omitempty"`
	TokenA         string        `json:"token_a,omitempty"`
	TokenB         string        `json:"token_b,omitempty"`
	ReserveA       uint64        `json:"reserve_a"`
	ReserveB       uint64        `json:"reserve_b"`
	LPSupply       uint64        `json:"lp_supply"`
	FeeBasisPoints uint16        `json:"fee_basis_points"`
	Swap           *swapQuote    `json:"swap,omitempty"`
	Deposit        *depositQuote `json:"deposit,omitempty"`
}

type swapQuote struct {
	Side      string `json:"side"`
	AmountIn  uint64 `json:"amount_in"`
	AmountOut uint64 `json:"amount_out"`
	Fee       uint64 `json:"fee"`
}

type depositQuote struct {
	AmountA  uint64 `json:"amount_a"`
	AmountB  uint64 `json:"amount_b"`
	LPMinted uint64 `json:"lp_minted,omitempty"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	curve, err := amm.NewCurve(uint16(cfg.FeeBasisPoints), cfg.Bound)
	if err != nil {
		return err
	}

	report := quoteReport{
		ReserveA:       cfg.ReserveA,
		ReserveB:       cfg.ReserveB,
		LPSupply:       cfg.LPSupply,
		FeeBasisPoints: curve.FeeBasisPoints,
	}

	if cfg.Pair != "" {
		if !common.IsHexAddress(cfg.Pair) {
			return fmt.Errorf("invalid pair address: %s", cfg.Pair)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		var block *big.Int
		if cfg.Block > 0 {
			block = new(big.Int).SetUint64(cfg.Block)
		}
		state, err := dex.NewPairReader(chainClient).State(ctx, common.HexToAddress(cfg.Pair), block)
		if err != nil {
			return fmt.Errorf("read pair: %w", err)
		}
		logger.Debug("pair state",
			zap.String("pair", state.Pair.Hex()),
			zap.Uint64("reserve0", state.Reserve0),
			zap.Uint64("reserve1", state.Reserve1),
			zap.Uint64("total_supply", state.TotalSupply),
			zap.Uint32("block_timestamp_last", state.BlockTimestampLast),
		)

		report.Pair = state.Pair.Hex()
		report.TokenA = state.Token0.Hex()
		report.TokenB = state.Token1.Hex()
		report.ReserveA = state.Reserve0
		report.ReserveB = state.Reserve1
		report.LPSupply = state.TotalSupply
	}

	if cfg.AmountIn > 0 {
		swap, err := quoteSwap(curve, report, cfg.Side, cfg.AmountIn)
		if err != nil {
			return err
		}
		report.Swap = &swap
	}
	if cfg.AmountA > 0 || cfg.AmountB > 0 {
		deposit, err := quoteDeposit(curve, report, cfg.AmountA, cfg.AmountB)
		if err != nil {
			return err
		}
		report.Deposit = &deposit
	}
	if report.Swap == nil && report.Deposit == nil {
		return errors.New("nothing to quote: set amount-in or amount-a/amount-b")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func quoteSwap(curve amm.Curve, report quoteReport, side string, amountIn uint64) (swapQuote, error) {
	reserveIn, reserveOut, sold := report.ReserveA, report.ReserveB, model.SellA
	if side == "b" {
		reserveIn, reserveOut, sold = report.ReserveB, report.ReserveA, model.SellB
	}
	out, err := curve.AmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return swapQuote{}, err
	}
	return swapQuote{
		Side:      sold.String(),
		AmountIn:  amountIn,
		AmountOut: out,
		Fee:       curve.FeeAmount(amountIn),
	}, nil
}

func quoteDeposit(curve amm.Curve, report quoteReport, amountA, amountB uint64) (depositQuote, error) {
	a, b, err := curve.DepositQuote(report.ReserveA, report.ReserveB, amountA, amountB, 0, 0)
	if err != nil {
		return depositQuote{}, err
	}
	quote := depositQuote{AmountA: a, AmountB: b}

	switch {
	case report.ReserveA == 0 && report.ReserveB == 0:
		quote.LPMinted, err = amm.InitialMint(a, b)
	case report.LPSupply > 0:
		quote.LPMinted, err = amm.ProportionalMint(a, b, report.ReserveA, report.ReserveB, report.LPSupply)
	}
	if err != nil {
		return depositQuote{}, err
	}
	return quote, nil
}
