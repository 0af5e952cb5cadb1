package exchange

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"swapCore/internal/dexerr"
	"swapCore/internal/model"
	"swapCore/internal/router"
)

func TestTransferLifecycle(t *testing.T) {
	h := newHarness(t, 0)
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(10)})

	p, err := h.ex.Withdraw("alice", "dai", e18(4))
	require.NoError(t, err)
	require.Equal(t, uint64(0), p.ID)
	require.Equal(t, e18(6).String(), h.ex.DepositOf("alice", "dai").String())
	require.Len(t, h.ex.Pending(), 1)

	require.NoError(t, h.ex.ResolveTransfer(p.ID, true))
	require.Empty(t, h.ex.Pending())
	require.ErrorIs(t, h.ex.ResolveTransfer(p.ID, true), dexerr.ErrUnknownTransfer)

	p, err = h.ex.Withdraw("alice", "dai", nil)
	require.NoError(t, err)
	require.Equal(t, e18(6).String(), p.Amount.String())
	require.NoError(t, h.ex.ResolveTransfer(p.ID, false))
	require.Equal(t, e18(6).String(), h.ex.DepositOf("alice", "dai").String())

	_, err = h.ex.Withdraw("alice", "dai", big.NewInt(0))
	require.ErrorIs(t, err, dexerr.ErrInvalidAmount)
	_, err = h.ex.Withdraw("alice", "dai", e18(7))
	require.ErrorIs(t, err, dexerr.ErrInsufficientBalance)
	_, err = h.ex.Withdraw("nobody", "dai", nil)
	require.ErrorIs(t, err, dexerr.ErrNotRegistered)

	// A transfer that fails after the account closed is parked.
	p, err = h.ex.Withdraw("alice", "dai", nil)
	require.NoError(t, err)
	require.NoError(t, h.ex.UnregisterAccount("alice"))
	require.NoError(t, h.ex.ResolveTransfer(p.ID, false))
	require.Equal(t, e18(6).String(), h.ex.LostFound("alice")[0].Amount.String())

	_, err = h.ex.ClaimLostFound("alice", "dai")
	require.ErrorIs(t, err, dexerr.ErrNotRegistered)
	require.NoError(t, h.ex.RegisterAccount("alice"))
	claimed, err := h.ex.ClaimLostFound("alice", "dai")
	require.NoError(t, err)
	require.Equal(t, e18(6).String(), claimed.String())
	require.Empty(t, h.ex.LostFound("alice"))
	require.Equal(t, e18(6).String(), h.ex.DepositOf("alice", "dai").String())

	last := h.sink.records[len(h.sink.records)-1]
	require.Equal(t, model.AuditDeposit, last.Kind)
	require.Equal(t, "lost_found", last.Detail)
}

func TestInstantSwapPaysOutResidue(t *testing.T) {
	h := newHarness(t, 0)
	id := seedDaiEth(t, h)

	out, err := h.ex.InstantSwap("dave", "dai", e18(10), []router.SwapAction{
		{PoolID: id, TokenIn: "dai", TokenOut: "eth"},
	}, "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "eth", out[0].Token)
	require.Equal(t, "dave", out[0].Account)
	require.Equal(t, "18140486474198681518", out[0].Amount.String())

	// dave never registered, so a bounced payout is parked.
	require.NoError(t, h.ex.ResolveTransfer(out[0].ID, false))
	require.Equal(t, "18140486474198681518", h.ex.LostFound("dave")[0].Amount.String())

	_, err = h.ex.InstantSwap("dave", "eth", e18(1), []router.SwapAction{
		{PoolID: id, TokenIn: "dai", TokenOut: "eth"},
	}, "")
	require.ErrorIs(t, err, dexerr.ErrInvalidAction)
	_, err = h.ex.InstantSwap("dave", "dai", nil, []router.SwapAction{
		{PoolID: id, TokenIn: "dai", TokenOut: "eth"},
	}, "")
	require.ErrorIs(t, err, dexerr.ErrInvalidAmount)
}

func TestLiquidityThroughExchange(t *testing.T) {
	h := newHarness(t, 0)
	id := seedDaiEth(t, h)
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(10), "eth": e18(30)})

	predicted, err := h.ex.PredictAddLiquidity(id, []*big.Int{e18(10), e18(30)})
	require.NoError(t, err)
	require.Equal(t, "100000000000000000000000", predicted.String())

	res, err := h.ex.AddLiquidity("alice", id, []*big.Int{e18(10), e18(30)}, predicted, "")
	require.NoError(t, err)
	require.Equal(t, predicted.String(), res.Shares.String())
	require.Equal(t, []string{e18(10).String(), e18(20).String()}, amountStrings(res.Amounts))
	require.Zero(t, h.ex.DepositOf("alice", "dai").Sign())
	require.Equal(t, e18(10).String(), h.ex.DepositOf("alice", "eth").String())

	_, err = h.ex.AddLiquidity("alice", id, []*big.Int{e18(10), e18(30)}, nil, "")
	require.ErrorIs(t, err, dexerr.ErrInsufficientBalance)

	preview, err := h.ex.PredictRemoveLiquidity(id, res.Shares)
	require.NoError(t, err)
	amounts, err := h.ex.RemoveLiquidity("alice", id, res.Shares, nil)
	require.NoError(t, err)
	require.Equal(t, amountStrings(preview), amountStrings(amounts))
	require.Equal(t, e18(10).String(), h.ex.DepositOf("alice", "dai").String())
	require.Equal(t, e18(30).String(), h.ex.DepositOf("alice", "eth").String())

	require.NoError(t, h.ex.UnregisterShares("alice", id))
	_, err = h.ex.RemoveLiquidity("alice", id, big.NewInt(1), nil)
	require.ErrorIs(t, err, dexerr.ErrInsufficientShares)
	_, err = h.ex.RemoveLiquidityByTokens("lp", id, []*big.Int{big.NewInt(1), big.NewInt(1)}, e18(1), "")
	require.ErrorIs(t, err, dexerr.ErrInvalidPool)
}

func TestShareTransfersAndDonations(t *testing.T) {
	h := newHarness(t, 0)
	id := seedDaiEth(t, h)
	chunk := e18(100_000)

	require.ErrorIs(t, h.ex.TransferShares("lp", id, "bob", chunk), dexerr.ErrNotRegistered)
	require.NoError(t, h.ex.RegisterShares("bob", id))
	require.NoError(t, h.ex.TransferShares("lp", id, "bob", chunk))
	require.ErrorIs(t, h.ex.UnregisterShares("bob", id), dexerr.ErrNonZeroShares)

	require.NoError(t, h.ex.DonateShares("bob", id, nil, true))
	bob, err := h.ex.Shares(id, "bob")
	require.NoError(t, err)
	require.Zero(t, bob.Sign())
	exShares, err := h.ex.Shares(id, DefaultExchangeID)
	require.NoError(t, err)
	require.Equal(t, chunk.String(), exShares.String())
	require.ErrorIs(t, h.ex.DonateShares("bob", id, nil, false), dexerr.ErrInvalidAmount)

	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(3)})
	require.NoError(t, h.ex.DonateToken("alice", "dai", e18(1)))
	require.Equal(t, e18(1).String(), h.ex.DepositOf(owner, "dai").String())
	require.Equal(t, e18(2).String(), h.ex.DepositOf("alice", "dai").String())
}

func TestStablePoolThroughExchange(t *testing.T) {
	h := newHarness(t, 2000)
	id, err := h.ex.AddStablePool(owner, []string{"usdc", "usdt", "dai"}, []uint8{6, 6, 6}, 25, 10_000)
	require.NoError(t, err)
	seed := e6(100_000)
	fund(t, h.ex, "lp", map[string]*big.Int{"usdc": seed, "usdt": seed, "dai": seed})
	res, err := h.ex.AddLiquidity("lp", id, []*big.Int{seed, seed, seed}, nil, "")
	require.NoError(t, err)
	require.Equal(t, "300000000000000000000000", res.Shares.String())

	fund(t, h.ex, "bob", map[string]*big.Int{"usdc": e6(500)})
	predicted, err := h.ex.PredictAddLiquidity(id, []*big.Int{e6(500), big.NewInt(0), big.NewInt(0)})
	require.NoError(t, err)
	require.Equal(t, "499399916979814237267", predicted.String())
	res, err = h.ex.AddLiquidity("bob", id, []*big.Int{e6(500), big.NewInt(0), big.NewInt(0)}, nil, "")
	require.NoError(t, err)
	require.Equal(t, "499399916979814237267", res.Shares.String())
	require.Equal(t, "119999985083010818", res.ExchangeShares.String())

	quote, err := h.ex.GetReturn(id, "usdc", e6(1), "dai")
	require.NoError(t, err)
	predictedHops, err := h.ex.PredictSwapActions([]router.SwapAction{{PoolID: id, TokenIn: "usdc", TokenOut: "dai"}}, e6(1))
	require.NoError(t, err)
	require.Equal(t, quote.String(), predictedHops[0].String())

	info, err := h.ex.Pool(id)
	require.NoError(t, err)
	require.Equal(t, "STABLE_SWAP", info.Kind)
	require.Equal(t, []uint32{6, 6, 6}, info.Decimals)
	require.Equal(t, uint64(10_000), info.Amp.Current)

	start := h.now
	require.NoError(t, h.ex.RampAmp(owner, id, 20_000, start+86_400))
	require.ErrorIs(t, h.ex.RampAmp(owner, id, 30_000, start+2*86_400), dexerr.ErrRampLocked)
	require.ErrorIs(t, h.ex.RampAmp("bob", id, 30_000, start+2*86_400), dexerr.ErrUnauthorized)
	h.now = start + 43_200
	info, err = h.ex.Pool(id)
	require.NoError(t, err)
	require.Equal(t, uint64(15_000), info.Amp.Current)
	require.Equal(t, uint64(20_000), info.Amp.Target)

	require.NoError(t, h.ex.StopRampAmp(owner, id))
	info, err = h.ex.Pool(id)
	require.NoError(t, err)
	require.Equal(t, uint64(15_000), info.Amp.Current)
	require.Equal(t, uint64(15_000), info.Amp.Target)

	burn, err := h.ex.PredictRemoveLiquidityByTokens(id, []*big.Int{e6(10), big.NewInt(0), big.NewInt(0)})
	require.NoError(t, err)
	burned, err := h.ex.RemoveLiquidityByTokens("bob", id, []*big.Int{e6(10), big.NewInt(0), big.NewInt(0)}, burn, "")
	require.NoError(t, err)
	require.Equal(t, burn.String(), burned.String())
	require.Equal(t, e6(10).String(), h.ex.DepositOf("bob", "usdc").String())
}

func TestStateSnapshotRoundTrip(t *testing.T) {
	h := newHarness(t, 2000)
	id := seedDaiEth(t, h)
	require.NoError(t, h.ex.SetReferral(owner, "ref", 500))
	require.NoError(t, h.ex.FreezeTokens(owner, "wbtc"))
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(2)})
	_, err := h.ex.Withdraw("alice", "dai", e18(1))
	require.NoError(t, err)

	b, err := json.Marshal(h.ex.Snapshot())
	require.NoError(t, err)
	var decoded State
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.NoError(t, decoded.Validate())

	again, err := json.Marshal(&decoded)
	require.NoError(t, err)
	require.JSONEq(t, string(b), string(again))

	restored := New(&decoded)
	info, err := restored.Pool(id)
	require.NoError(t, err)
	require.Equal(t, []string{e18(100).String(), e18(200).String()}, info.Reserves)
	require.Len(t, restored.Pending(), 1)
	require.Equal(t, uint32(500), restored.Metadata().Referrals["ref"])
}

func TestStateValidateRejectsBadSnapshots(t *testing.T) {
	st, err := NewState(Config{Owner: owner})
	require.NoError(t, err)
	st.Pending[3] = PendingTransfer{ID: 3, Account: "a", Token: "t", Amount: big.NewInt(1)}
	require.ErrorIs(t, st.Validate(), dexerr.ErrUnknownTransfer)

	_, err = NewState(Config{})
	require.ErrorIs(t, err, dexerr.ErrInvalidAction)
	_, err = NewState(Config{Owner: owner, AdminFeeBps: 10_000})
	require.ErrorIs(t, err, dexerr.ErrInvalidFee)
}

func TestHoldingsAreConserved(t *testing.T) {
	h := newHarness(t, 2000)
	id := seedDaiEth(t, h)
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(10)})

	_, err := h.ex.Swap("alice", []router.SwapAction{
		{PoolID: id, TokenIn: "dai", AmountIn: e18(10), TokenOut: "eth"},
	}, "")
	require.NoError(t, err)
	p, err := h.ex.Withdraw("alice", "eth", big.NewInt(1_000))
	require.NoError(t, err)

	got := h.ex.Holdings()
	require.Len(t, got, 2)
	require.Equal(t, "dai", got[0].Token)
	require.Equal(t, e18(110).String(), got[0].Amount.String())
	require.Equal(t, "eth", got[1].Token)
	require.Equal(t, e18(200).String(), got[1].Amount.String())

	require.NoError(t, h.ex.ResolveTransfer(p.ID, true))
	got = h.ex.Holdings()
	require.Equal(t, new(big.Int).Sub(e18(200), big.NewInt(1_000)).String(), got[1].Amount.String())
}
