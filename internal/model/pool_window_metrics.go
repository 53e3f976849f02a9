package model

import "time"

// PoolWindowMetrics stores aggregated swap metrics for a pool window.
type PoolWindowMetrics struct {
	PoolAddress    string
	TokenA         string
	TokenB         string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	VolumeA        string
	VolumeB        string
	FeeA           string
	FeeB           string
	ReserveA       string
	ReserveB       string
	FeeRateA       *string
	FeeRateB       *string
	LastSequence   uint64
}
