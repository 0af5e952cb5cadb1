// Package fees holds the trade, admin, referral and imbalance fee arithmetic.
package fees

import (
	"math/big"

	"swapCore/internal/dexerr"
)

// FeeDivisor turns fee fields into basis points.
const FeeDivisor uint32 = 10_000

var feeDivisor = big.NewInt(int64(FeeDivisor))

// Fees is the per-pool fee calculator. TradeFeeBps is charged on the traded
// amount and AdminFeeBps is the protocol cut of that fee.
type Fees struct {
	TradeFeeBps uint32
	AdminFeeBps uint32
}

// New binds a pool's total fee to the exchange-wide admin settings.
func New(totalFee uint32, admin AdminFees) Fees {
	return Fees{TradeFeeBps: totalFee, AdminFeeBps: admin.AdminFeeBps}
}

// Zero charges nothing.
func Zero() Fees {
	return Fees{}
}

// TradeFee returns floor(amount * trade_fee / FEE_DIVISOR).
func (f Fees) TradeFee(amount *big.Int) *big.Int {
	return Ratio(amount, f.TradeFeeBps, FeeDivisor)
}

// AdminTradeFee returns floor(fee * admin_fee / FEE_DIVISOR).
func (f Fees) AdminTradeFee(fee *big.Int) *big.Int {
	return Ratio(fee, f.AdminFeeBps, FeeDivisor)
}

// NormalizedFeeBps scales the trade fee for per-token imbalance charges on an
// n-token pool: fee * n / (4 * (n - 1)).
func (f Fees) NormalizedFeeBps(n int) uint32 {
	if n < 2 {
		return 0
	}
	return f.TradeFeeBps * uint32(n) / (4 * uint32(n-1))
}

// NormalizedTradeFee charges the normalized fee on amount.
func (f Fees) NormalizedTradeFee(n int, amount *big.Int) *big.Int {
	return Ratio(amount, f.NormalizedFeeBps(n), FeeDivisor)
}

// Referral is a registered referrer and its cut of the admin fee.
type Referral struct {
	ID     string
	FeeBps uint32
}

// AdminFees describes where the protocol cut of a fee is routed.
type AdminFees struct {
	// AdminFeeBps is the share of every trade fee kept by the protocol.
	AdminFeeBps uint32
	ExchangeID  string
	// Referral, when set, receives FeeBps of the admin share.
	Referral *Referral
}

// ReferralShare splits adminShare and returns the referral part together with
// its recipient. Without a referral the share is zero.
func (a AdminFees) ReferralShare(adminShare *big.Int) (*big.Int, string) {
	if a.Referral == nil {
		return new(big.Int), a.ExchangeID
	}
	return Ratio(adminShare, a.Referral.FeeBps, FeeDivisor), a.Referral.ID
}

// ValidateBps rejects basis point values that are not strictly below the divisor.
func ValidateBps(bps uint32) error {
	if bps >= FeeDivisor {
		return dexerr.ErrInvalidFee.Wrapf("%d bps must be below %d", bps, FeeDivisor)
	}
	return nil
}

// Ratio returns floor(amount * num / denom); a zero denominator yields zero.
func Ratio(amount *big.Int, num, denom uint32) *big.Int {
	if amount == nil || denom == 0 || num == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(num)))
	return out.Quo(out, big.NewInt(int64(denom)))
}

// Divisor returns FEE_DIVISOR as a big integer.
func Divisor() *big.Int {
	return new(big.Int).Set(feeDivisor)
}
