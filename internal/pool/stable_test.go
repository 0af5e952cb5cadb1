package pool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"swapCore/internal/dexerr"
	"swapCore/internal/fees"
	"swapCore/internal/solver"
)

// newTriPool seeds a 3-token, 6-decimal pool with 100000 of every token.
func newTriPool(t *testing.T, fee uint32) *StableSwapPool {
	t.Helper()
	p, err := NewStableSwapPool([]string{"usdc", "usdt", "dai"}, []uint8{6, 6, 6}, fee, 10_000)
	require.NoError(t, err)
	seed := e(100_000, 6)
	res, err := p.AddLiquidity(CallEnv{}, "lp", []*big.Int{seed, seed, seed}, nil)
	require.NoError(t, err)
	require.Equal(t, "300000000000000000000000", res.Shares.String())
	require.Zero(t, res.FeeShares.Sign())
	return p
}

func TestStableNearPegSwap(t *testing.T) {
	p := newTriPool(t, 25)
	d0, err := solver.ComputeD(p.CAmounts, 10_000)
	require.NoError(t, err)

	res, err := p.Swap(CallEnv{}, "usdc", e(1, 6), "dai", nil)
	require.NoError(t, err)
	require.Equal(t, "997499", res.AmountOut.String())
	require.Equal(t, "2499", res.Fee.String())
	require.Equal(t, "dai", res.FeeToken)

	gross := new(big.Int).Add(res.AmountOut, res.Fee)
	require.True(t, gross.Cmp(big.NewInt(999_000)) >= 0, "gross output %s is more than 0.1%% off peg", gross)

	// Without the retained fee the invariant is unchanged.
	preFee := cloneAmounts(p.CAmounts)
	preFee[2].Sub(preFee[2], amt(t, "2499999997500249"))
	d1, err := solver.ComputeD(preFee, 10_000)
	require.NoError(t, err)
	drift := new(big.Int).Sub(d1, d0)
	require.True(t, drift.CmpAbs(big.NewInt(1)) <= 0, "invariant drifted by %s", drift)

	withFee, err := solver.ComputeD(p.CAmounts, 10_000)
	require.NoError(t, err)
	require.Positive(t, withFee.Cmp(d0))
}

func TestStableAdminFeeBecomesShares(t *testing.T) {
	p := newTriPool(t, 25)
	p.Shares.Register("ref")
	env := CallEnv{Admin: fees.AdminFees{
		AdminFeeBps: 2000,
		ExchangeID:  "exchange",
		Referral:    &fees.Referral{ID: "ref", FeeBps: 1000},
	}}
	res, err := p.Swap(env, "usdc", e(1, 6), "dai", nil)
	require.NoError(t, err)
	require.Equal(t, "997499", res.AmountOut.String())
	require.Equal(t, "499", res.AdminFee.String())
	require.Equal(t, "49999999666591", res.ReferralShares.String())
	require.Equal(t, "449999996999327", res.ExchangeShares.String())
	require.Equal(t, []string{
		"100001000000000000000000",
		"100000000000000000000000",
		"99999002500000997400258",
	}, strs(p.CAmounts))
	require.Equal(t, "300000000499999996665918", p.Shares.TotalSupply().String())
}

func TestStableImbalancedDepositPaysNormalizedFee(t *testing.T) {
	p := newTriPool(t, 25)
	env := CallEnv{Admin: fees.AdminFees{AdminFeeBps: 2000, ExchangeID: "exchange"}}
	res, err := p.AddLiquidity(env, "bob", []*big.Int{e(500, 6), big.NewInt(0), big.NewInt(0)}, nil)
	require.NoError(t, err)

	balanced := e(500, 18)
	require.Negative(t, res.Shares.Cmp(balanced))
	require.Equal(t, "499399916979814237267", res.Shares.String())
	require.Equal(t, "599999925415054094", res.FeeShares.String())
	require.Equal(t, "499999916905229291361", new(big.Int).Add(res.Shares, res.FeeShares).String())
	require.Equal(t, "119999985083010818", res.ExchangeShares.String())
	require.Equal(t, res.ExchangeShares.String(), p.Shares.BalanceOf("exchange").String())

	_, err = p.AddLiquidity(env, "bob", []*big.Int{e(500, 6), big.NewInt(0), big.NewInt(0)}, balanced)
	require.ErrorIs(t, err, dexerr.ErrSlippageExceeded)
}

func TestStableDepositChargesNormalizedFeeOnImbalance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const n = 3
		fee := rapid.Uint32Range(0, 1_000).Draw(t, "fee")
		amp := rapid.Uint64Range(1, 5_000).Draw(t, "amp")
		p, err := NewStableSwapPool([]string{"a", "b", "c"}, []uint8{18, 18, 18}, fee, amp)
		if err != nil {
			t.Fatal(err)
		}
		seed := make([]*big.Int, n)
		for i := range seed {
			seed[i] = e(rapid.Int64Range(1_000, 1_000_000).Draw(t, "seed"), 18)
		}
		if _, err := p.AddLiquidity(CallEnv{}, "lp", seed, nil); err != nil {
			t.Fatal(err)
		}
		deposit := make([]*big.Int, n)
		for i := range deposit {
			lo := int64(0)
			if i == 0 {
				lo = 1
			}
			deposit[i] = e(rapid.Int64Range(lo, 2_000_000).Draw(t, "deposit"), 15)
		}

		old := cloneAmounts(p.CAmounts)
		supply := p.Shares.TotalSupply()
		d0, err := solver.ComputeD(old, amp)
		if err != nil {
			t.Fatal(err)
		}
		next := make([]*big.Int, n)
		for i := range next {
			next[i] = new(big.Int).Add(old[i], deposit[i])
		}
		d1, err := solver.ComputeD(next, amp)
		if err != nil {
			t.Fatal(err)
		}

		// fee * n / (4 * (n - 1)) on each token's distance from a balanced deposit.
		normalized := big.NewInt(int64(fee) * n / (4 * (n - 1)))
		charged := make([]*big.Int, n)
		for i := range next {
			ideal := new(big.Int).Quo(new(big.Int).Mul(d1, old[i]), d0)
			diff := new(big.Int).Abs(new(big.Int).Sub(ideal, next[i]))
			cut := new(big.Int).Quo(new(big.Int).Mul(diff, normalized), big.NewInt(10_000))
			charged[i] = new(big.Int).Sub(next[i], cut)
		}
		d2, err := solver.ComputeD(charged, amp)
		if err != nil {
			t.Fatal(err)
		}
		sharesOf := func(delta *big.Int) *big.Int {
			return new(big.Int).Quo(new(big.Int).Mul(delta, supply), d0)
		}
		feeFree := sharesOf(new(big.Int).Sub(d1, d0))
		feeShares := sharesOf(new(big.Int).Sub(d1, d2))
		want := new(big.Int).Sub(feeFree, feeShares)

		env := CallEnv{Admin: fees.AdminFees{AdminFeeBps: 2000, ExchangeID: "exchange"}}
		res, err := p.AddLiquidity(env, "bob", deposit, nil)
		if err != nil {
			t.Fatal(err)
		}
		if gap := new(big.Int).Sub(res.Shares, want); gap.CmpAbs(big.NewInt(1)) > 0 {
			t.Fatalf("minted %s shares, want %s (fee-free %s, fee %s)", res.Shares, want, feeFree, feeShares)
		}
		if res.Shares.Cmp(feeFree) > 0 {
			t.Fatalf("minted %s shares, more than the fee-free %s", res.Shares, feeFree)
		}
		if gap := new(big.Int).Sub(new(big.Int).Add(res.Shares, res.FeeShares), feeFree); gap.CmpAbs(big.NewInt(1)) > 0 {
			t.Fatalf("minted %s + fee %s does not add up to fee-free %s", res.Shares, res.FeeShares, feeFree)
		}
	})
}

func TestStableDepositMustRaiseInvariant(t *testing.T) {
	p := newTriPool(t, 25)
	m := stableMath{amp: 10_000}
	_, _, err := m.lpForDeposit(zeroAmounts(3), p.CAmounts, p.Shares.TotalSupply(), fees.Fees{TradeFeeBps: 25})
	require.ErrorIs(t, err, dexerr.ErrInvariantViolated)

	_, err = p.AddLiquidity(CallEnv{}, "bob", zeroAmounts(3), nil)
	require.ErrorIs(t, err, dexerr.ErrInvalidAmount)
}

func TestStableInvariantGrowsOnDeposit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p, err := NewStableSwapPool([]string{"a", "b", "c"}, []uint8{6, 18, 24}, 25, rapid.Uint64Range(1, 5_000).Draw(t, "amp"))
		if err != nil {
			t.Fatal(err)
		}
		seed := []*big.Int{e(1_000_000, 6), e(1_000_000, 18), e(1_000_000, 24)}
		if _, err := p.AddLiquidity(CallEnv{}, "lp", seed, nil); err != nil {
			t.Fatal(err)
		}
		d0, err := solver.ComputeD(p.CAmounts, p.Amp.Target)
		if err != nil {
			t.Fatal(err)
		}
		deposit := []*big.Int{
			e(int64(rapid.IntRange(0, 50_000).Draw(t, "a")), 6),
			e(int64(rapid.IntRange(0, 50_000).Draw(t, "b")), 18),
			e(int64(rapid.IntRange(1, 50_000).Draw(t, "c")), 24),
		}
		res, err := p.AddLiquidity(CallEnv{}, "bob", deposit, nil)
		if err != nil {
			t.Fatal(err)
		}
		d1, err := solver.ComputeD(p.CAmounts, p.Amp.Target)
		if err != nil {
			t.Fatal(err)
		}
		if d1.Cmp(d0) <= 0 || res.Shares.Sign() <= 0 {
			t.Fatalf("deposit %v: D %s -> %s, shares %s", strs(deposit), d0, d1, res.Shares)
		}
	})
}

func TestStableRoundTripWithoutFee(t *testing.T) {
	p := newTriPool(t, 0)
	deposit := []*big.Int{e(10, 6), e(10, 6), e(10, 6)}
	res, err := p.AddLiquidity(CallEnv{}, "bob", deposit, nil)
	require.NoError(t, err)
	require.Equal(t, "30000000000000000000", res.Shares.String())

	out, err := p.RemoveLiquidity("bob", res.Shares, nil)
	require.NoError(t, err)
	require.Equal(t, strs(deposit), strs(out))
}

func TestStableRemoveByTokensBurnsMoreThanBalanced(t *testing.T) {
	p := newTriPool(t, 25)
	want := []*big.Int{e(1_000, 6), big.NewInt(0), big.NewInt(0)}

	_, err := p.RemoveLiquidityByTokens(CallEnv{}, "lp", want, e(1_000, 18))
	require.ErrorIs(t, err, dexerr.ErrSlippageExceeded)

	res, err := p.RemoveLiquidityByTokens(CallEnv{}, "lp", want, e(2_000, 18))
	require.NoError(t, err)
	require.Positive(t, res.Shares.Cmp(e(1_000, 18)))
	require.Positive(t, res.FeeShares.Sign())
	require.Equal(t, "99000000000000000000000", p.CAmounts[0].String())

	_, err = p.RemoveLiquidityByTokens(CallEnv{}, "bob", want, e(2_000, 18))
	require.ErrorIs(t, err, dexerr.ErrInsufficientShares)

	drain := []*big.Int{e(99_000, 6), big.NewInt(0), big.NewInt(0)}
	_, err = p.RemoveLiquidityByTokens(CallEnv{}, "lp", drain, e(300_000, 18))
	require.ErrorIs(t, err, dexerr.ErrMinReserve)
}

func TestStableConstructorAndBootstrapRules(t *testing.T) {
	_, err := NewStableSwapPool([]string{"a"}, []uint8{6}, 25, 100)
	require.ErrorIs(t, err, dexerr.ErrTokenCount)
	_, err = NewStableSwapPool([]string{"a", "b"}, []uint8{6}, 25, 100)
	require.ErrorIs(t, err, dexerr.ErrInvalidDecimals)
	_, err = NewStableSwapPool([]string{"a", "b"}, []uint8{6, 25}, 25, 100)
	require.ErrorIs(t, err, dexerr.ErrInvalidDecimals)
	_, err = NewStableSwapPool([]string{"a", "b"}, []uint8{6, 6}, 25, 0)
	require.ErrorIs(t, err, dexerr.ErrInvalidAmp)

	p, err := NewStableSwapPool([]string{"a", "b"}, []uint8{6, 24}, 25, 100)
	require.NoError(t, err)
	_, err = p.AddLiquidity(CallEnv{}, "lp", []*big.Int{e(1, 6), big.NewInt(0)}, nil)
	require.ErrorIs(t, err, dexerr.ErrInvalidAmount)
	_, err = p.Swap(CallEnv{}, "a", e(1, 6), "b", nil)
	require.ErrorIs(t, err, dexerr.ErrInsufficientLiquidity)

	_, err = p.AddLiquidity(CallEnv{}, "lp", []*big.Int{e(1_000, 6), e(1_000, 24)}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"1000000000", "1000000000000000000000000000"}, strs(p.Reserves()))
	require.Equal(t, "100000000", p.SharePrice().String())
}

func TestStableSlippageAndMinReserve(t *testing.T) {
	p := newTriPool(t, 25)
	quote, err := p.GetReturn(CallEnv{}, "usdc", e(1, 6), "dai")
	require.NoError(t, err)
	require.Equal(t, "997499", quote.String())

	before := strs(p.CAmounts)
	_, err = p.Swap(CallEnv{}, "usdc", e(1, 6), "dai", big.NewInt(997_500))
	require.ErrorIs(t, err, dexerr.ErrSlippageExceeded)
	require.Equal(t, before, strs(p.CAmounts))

	_, err = p.RemoveLiquidity("lp", p.Shares.BalanceOf("lp"), nil)
	require.ErrorIs(t, err, dexerr.ErrMinReserve)
}

func TestStableFeeMonotonic(t *testing.T) {
	env := CallEnv{Admin: fees.AdminFees{AdminFeeBps: 2000, ExchangeID: "exchange"}}
	var prevOut, prevAdmin *big.Int
	for _, fee := range []uint32{5, 10, 30, 100} {
		p := newTriPool(t, fee)
		res, err := p.Swap(env, "usdc", e(100, 6), "dai", nil)
		require.NoError(t, err)
		if prevOut != nil {
			require.Negative(t, res.AmountOut.Cmp(prevOut), "fee %d", fee)
			require.Positive(t, res.AdminFee.Cmp(prevAdmin), "fee %d", fee)
		}
		prevOut, prevAdmin = res.AmountOut, res.AdminFee
	}
}
