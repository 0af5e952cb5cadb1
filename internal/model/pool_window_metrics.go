package model

import "time"

// PoolWindowMetrics stores aggregated activity for a pool window.
type PoolWindowMetrics struct {
	PoolID         uint64
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	LiquidityOps   uint64
	Tokens         []WindowTokenMetrics
	AdminShares    string
	ReferralShares string
}

// WindowTokenMetrics is the per-token slice of a pool window.
type WindowTokenMetrics struct {
	Token     string
	VolumeIn  string
	VolumeOut string
	Fee       string
	FeeHuman  *string
}
