package amm

import "errors"

var (
	ErrInvalidInput                = errors.New("invalid input amount")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrSlippageExceeded            = errors.New("slippage exceeded")
	ErrInvalidTokenMint            = errors.New("token mint matches neither pool asset")
	ErrInsufficientLiquidityTokens = errors.New("insufficient liquidity tokens")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrOverflow                    = errors.New("arithmetic overflow")
	ErrLedgerFailure               = errors.New("ledger failure")
	ErrPoolInvariant               = errors.New("pool invariant violated")
	ErrInvalidFee                  = errors.New("fee basis points out of range")
)
