package model

// PoolInfo is the queryable view of a pool. Amounts are base-10 strings in
// token units.
type PoolInfo struct {
	ID          uint64        `json:"id"`
	Kind        string        `json:"kind"`
	Tokens      []string      `json:"tokens"`
	Decimals    []uint32      `json:"decimals,omitempty"`
	Reserves    []string      `json:"reserves"`
	TotalFee    uint32        `json:"total_fee"`
	ShareSupply string        `json:"shares_total_supply"`
	SharePrice  string        `json:"share_price"`
	Amp         *AmpInfo      `json:"amp,omitempty"`
	Volumes     []TokenVolume `json:"volumes"`
	Frozen      bool          `json:"frozen,omitempty"`
}

// AmpInfo captures the amplification and any ramp in progress.
type AmpInfo struct {
	Current     uint64 `json:"current"`
	Initial     uint64 `json:"initial"`
	Target      uint64 `json:"target"`
	RampStartTS uint64 `json:"ramp_start_ts"`
	RampStopTS  uint64 `json:"ramp_stop_ts"`
}

// TokenVolume is the cumulative swap volume of one pool token.
type TokenVolume struct {
	Token  string `json:"token"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Metadata describes the exchange configuration.
type Metadata struct {
	Owner        string            `json:"owner"`
	ExchangeID   string            `json:"exchange_id"`
	AdminFeeBps  uint32            `json:"admin_fee_bps"`
	Paused       bool              `json:"paused"`
	PoolCount    uint64            `json:"pool_count"`
	Referrals    map[string]uint32 `json:"referrals"`
	FrozenTokens []string          `json:"frozen_tokens"`
	FrozenPools  []uint64          `json:"frozen_pools"`
}
