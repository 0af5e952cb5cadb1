package model

import (
	"encoding/json"
)

// Audit record kinds.
const (
	AuditPoolCreated      = "pool_created"
	AuditSwap             = "swap"
	AuditAddLiquidity     = "add_liquidity"
	AuditRemoveLiquidity  = "remove_liquidity"
	AuditDeposit          = "deposit"
	AuditWithdraw         = "withdraw"
	AuditTransferResolved = "transfer_resolved"
	AuditShares           = "shares"
	AuditDonate           = "donate"
	AuditAdmin            = "admin"
)

// AuditRecord is the normalized representation of one committed state change.
// Amounts are base-10 strings.
type AuditRecord struct {
	Seq            uint64   `json:"seq"`
	Kind           string   `json:"kind"`
	PoolID         *uint64  `json:"pool_id,omitempty"`
	Account        string   `json:"account"`
	TokenIn        string   `json:"token_in,omitempty"`
	AmountIn       string   `json:"amount_in,omitempty"`
	TokenOut       string   `json:"token_out,omitempty"`
	AmountOut      string   `json:"amount_out,omitempty"`
	Fee            string   `json:"fee,omitempty"`
	FeeToken       string   `json:"fee_token,omitempty"`
	AdminFee       string   `json:"admin_fee,omitempty"`
	ExchangeShares string   `json:"exchange_shares,omitempty"`
	ReferralShares string   `json:"referral_shares,omitempty"`
	Referral       string   `json:"referral,omitempty"`
	Shares         string   `json:"shares,omitempty"`
	Tokens         []string `json:"tokens,omitempty"`
	Amounts        []string `json:"amounts,omitempty"`
	Detail         string   `json:"detail,omitempty"`
	Timestamp      uint64   `json:"timestamp"`
	RecordedAt     string   `json:"recorded_at"`
}

// MarshalJSON ensures AuditRecord is encoded with stable field names.
func (r AuditRecord) MarshalJSON() ([]byte, error) {
	type Alias AuditRecord
	return json.Marshal(Alias(r))
}

// UnmarshalJSON decodes an AuditRecord from JSON.
func (r *AuditRecord) UnmarshalJSON(data []byte) error {
	type Alias AuditRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = AuditRecord(a)
	return nil
}

// Pool returns the pool id, or false for records not tied to a pool.
func (r AuditRecord) Pool() (uint64, bool) {
	if r.PoolID == nil {
		return 0, false
	}
	return *r.PoolID, true
}
