package exchange

import (
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"swapCore/internal/dexerr"
	"swapCore/internal/ledger"
	"swapCore/internal/metrics"
	"swapCore/internal/model"
	"swapCore/internal/router"
)

const owner = "owner"

type memorySink struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

func (s *memorySink) PutAuditBatch(records []model.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *memorySink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Kind
	}
	return out
}

type harness struct {
	ex      *Exchange
	sink    *memorySink
	metrics *metrics.Metrics
	now     uint64
}

func newHarness(t *testing.T, adminBps uint32) *harness {
	t.Helper()
	st, err := NewState(Config{Owner: owner, AdminFeeBps: adminBps})
	require.NoError(t, err)
	h := &harness{sink: &memorySink{}, metrics: metrics.New(prometheus.NewRegistry()), now: 1_000_000}
	h.ex = New(st,
		WithLogger(zaptest.NewLogger(t)),
		WithSink(h.sink),
		WithMetrics(h.metrics),
		WithClock(func() uint64 { return h.now }),
	)
	return h
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func e6(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

func fund(t *testing.T, ex *Exchange, account string, balances map[string]*big.Int) {
	t.Helper()
	tokens := make([]string, 0, len(balances))
	for token := range balances {
		tokens = append(tokens, token)
	}
	require.NoError(t, ex.RegisterAccount(account, tokens...))
	for token, amount := range balances {
		require.NoError(t, ex.Deposit(account, token, amount))
	}
}

// seedDaiEth creates pool 0 (dai/eth, fee 25) with 100 dai and 200 eth.
func seedDaiEth(t *testing.T, h *harness) uint64 {
	t.Helper()
	id, err := h.ex.AddSimplePool("lp", []string{"dai", "eth"}, 25)
	require.NoError(t, err)
	fund(t, h.ex, "lp", map[string]*big.Int{"dai": e18(100), "eth": e18(200)})
	res, err := h.ex.AddLiquidity("lp", id, []*big.Int{e18(100), e18(200)}, nil, "")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000000000", res.Shares.String())
	return id
}

func TestSwapRoutesAdminFeesToReferral(t *testing.T) {
	h := newHarness(t, 2000)
	id := seedDaiEth(t, h)
	require.NoError(t, h.ex.SetReferral(owner, "ref", 1000))
	require.NoError(t, h.ex.RegisterShares("ref", id))
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(10)})

	out, err := h.ex.Swap("alice", []router.SwapAction{
		{PoolID: id, TokenIn: "dai", AmountIn: e18(10), TokenOut: "eth"},
	}, "ref")
	require.NoError(t, err)
	require.Equal(t, "18140486474198681518", out.String())
	require.Equal(t, "0", h.ex.DepositOf("alice", "dai").String())
	require.Equal(t, "18140486474198681518", h.ex.DepositOf("alice", "eth").String())

	refShares, err := h.ex.Shares(id, "ref")
	require.NoError(t, err)
	require.Equal(t, "2272856419634879632", refShares.String())
	exShares, err := h.ex.Shares(id, DefaultExchangeID)
	require.NoError(t, err)
	require.Equal(t, "20455707776713916695", exShares.String())

	info, err := h.ex.Pool(id)
	require.NoError(t, err)
	require.Equal(t, []string{"110000000000000000000", "181859513525801318482"}, info.Reserves)
	require.Equal(t, "10000000000000000000", info.Volumes[0].Input)
	require.Equal(t, "18140486474198681518", info.Volumes[1].Output)

	last := h.sink.records[len(h.sink.records)-1]
	require.Equal(t, model.AuditSwap, last.Kind)
	require.Equal(t, "25000000000000000", last.Fee)
	require.Equal(t, "dai", last.FeeToken)
	require.Equal(t, "ref", last.Referral)
	require.Equal(t, h.now, last.Timestamp)
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SwapsTotal.WithLabelValues("0", "CONSTANT_PRODUCT")))
}

func TestUnknownReferralIsIgnored(t *testing.T) {
	h := newHarness(t, 2000)
	id := seedDaiEth(t, h)
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(10)})

	_, err := h.ex.Swap("alice", []router.SwapAction{
		{PoolID: id, TokenIn: "dai", AmountIn: e18(10), TokenOut: "eth"},
	}, "stranger")
	require.NoError(t, err)
	exShares, err := h.ex.Shares(id, DefaultExchangeID)
	require.NoError(t, err)
	require.Equal(t, "22728564196348796327", exShares.String())
}

func TestFailedHopRollsBackWholeCall(t *testing.T) {
	h := newHarness(t, 2000)
	daiEth := seedDaiEth(t, h)
	ethUsdc, err := h.ex.AddSimplePool("lp", []string{"eth", "usdc"}, 30)
	require.NoError(t, err)
	require.NoError(t, h.ex.RegisterAccount("lp", "usdc"))
	require.NoError(t, h.ex.Deposit("lp", "eth", e18(50)))
	require.NoError(t, h.ex.Deposit("lp", "usdc", e6(100_000)))
	_, err = h.ex.AddLiquidity("lp", ethUsdc, []*big.Int{e18(50), e6(100_000)}, nil, "")
	require.NoError(t, err)
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(10)})

	before, err := json.Marshal(h.ex.Snapshot())
	require.NoError(t, err)
	records := len(h.sink.records)

	_, err = h.ex.Swap("alice", []router.SwapAction{
		{PoolID: daiEth, TokenIn: "dai", AmountIn: e18(10), TokenOut: "eth"},
		{PoolID: ethUsdc, TokenIn: "eth", TokenOut: "usdc", MinAmountOut: e6(1_000_000)},
	}, "")
	require.ErrorIs(t, err, dexerr.ErrSlippageExceeded)
	require.Equal(t, uint32(4), dexerr.Code(err))

	after, err := json.Marshal(h.ex.Snapshot())
	require.NoError(t, err)
	require.JSONEq(t, string(before), string(after))
	require.Len(t, h.sink.records, records)
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Rejections.WithLabelValues("swap", "4")))

	// The same route without the bad bound succeeds and chains the output.
	out, err := h.ex.Swap("alice", []router.SwapAction{
		{PoolID: daiEth, TokenIn: "dai", AmountIn: e18(10), TokenOut: "eth"},
		{PoolID: ethUsdc, TokenIn: "eth", TokenOut: "usdc"},
	}, "")
	require.NoError(t, err)
	require.Equal(t, out.String(), h.ex.DepositOf("alice", "usdc").String())
	require.Zero(t, h.ex.DepositOf("alice", "eth").Sign())
}

func TestSwapNeedsBalanceAndRegistration(t *testing.T) {
	h := newHarness(t, 0)
	id := seedDaiEth(t, h)
	actions := []router.SwapAction{{PoolID: id, TokenIn: "dai", AmountIn: e18(1), TokenOut: "eth"}}

	_, err := h.ex.Swap("ghost", actions, "")
	require.ErrorIs(t, err, dexerr.ErrNotRegistered)

	require.NoError(t, h.ex.RegisterAccount("bob"))
	_, err = h.ex.Swap("bob", actions, "")
	require.ErrorIs(t, err, dexerr.ErrInsufficientBalance)

	_, err = h.ex.Swap(router.VirtualAccount, actions, "")
	require.ErrorIs(t, err, dexerr.ErrInvalidAction)
}

func TestDepositNeedsWhitelistedToken(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.ex.RegisterAccount("alice", "dai"))
	require.ErrorIs(t, h.ex.Deposit("alice", "eth", e18(1)), dexerr.ErrNotRegistered)
	require.Zero(t, h.ex.DepositOf("alice", "eth").Sign())

	require.NoError(t, h.ex.Deposit("alice", "dai", ledger.MaxBalance))
	require.ErrorIs(t, h.ex.Deposit("alice", "dai", big.NewInt(1)), dexerr.ErrArithmeticOverflow)
	require.Equal(t, ledger.MaxBalance.String(), h.ex.DepositOf("alice", "dai").String())

	require.NoError(t, h.ex.RegisterAccount("alice", "eth"))
	require.NoError(t, h.ex.Deposit("alice", "eth", e18(1)))
}

func TestVirtualAccountIDIsReserved(t *testing.T) {
	h := newHarness(t, 0)
	err := h.ex.RegisterAccount(router.VirtualAccount, "dai")
	require.ErrorIs(t, err, dexerr.ErrInvalidAction)
	require.ErrorIs(t, h.ex.Deposit(router.VirtualAccount, "dai", e18(1)), dexerr.ErrNotRegistered)
	require.False(t, h.ex.Snapshot().Ledger.Registered(router.VirtualAccount))
}

func TestOwnerGating(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.ex.AddStablePool("alice", []string{"usdc", "usdt"}, []uint8{6, 6}, 5, 100)
	require.ErrorIs(t, err, dexerr.ErrUnauthorized)
	require.ErrorIs(t, h.ex.Pause("alice"), dexerr.ErrUnauthorized)
	require.ErrorIs(t, h.ex.SetReferral("alice", "ref", 10), dexerr.ErrUnauthorized)
	require.ErrorIs(t, h.ex.SetAdminFee("alice", 10), dexerr.ErrUnauthorized)
	require.ErrorIs(t, h.ex.SetOwner("alice", "alice"), dexerr.ErrUnauthorized)

	require.ErrorIs(t, h.ex.SetAdminFee(owner, 10_000), dexerr.ErrInvalidFee)
	require.ErrorIs(t, h.ex.SetReferral(owner, "ref", 10_000), dexerr.ErrInvalidFee)
	require.NoError(t, h.ex.SetAdminFee(owner, 1500))
	require.Equal(t, uint32(1500), h.ex.Metadata().AdminFeeBps)

	require.NoError(t, h.ex.SetOwner(owner, "carol"))
	require.ErrorIs(t, h.ex.Pause(owner), dexerr.ErrUnauthorized)
	require.NoError(t, h.ex.Pause("carol"))
	require.Equal(t, "carol", h.ex.Metadata().Owner)
}

func TestPauseBlocksEveryoneButOwner(t *testing.T) {
	h := newHarness(t, 0)
	id := seedDaiEth(t, h)
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(1)})

	require.NoError(t, h.ex.Pause(owner))
	require.True(t, h.ex.Metadata().Paused)
	require.ErrorIs(t, h.ex.Deposit("alice", "dai", e18(1)), dexerr.ErrPaused)
	_, err := h.ex.Swap("alice", []router.SwapAction{{PoolID: id, TokenIn: "dai", AmountIn: e18(1), TokenOut: "eth"}}, "")
	require.ErrorIs(t, err, dexerr.ErrPaused)
	_, err = h.ex.AddSimplePool("alice", []string{"x", "y"}, 30)
	require.ErrorIs(t, err, dexerr.ErrPaused)
	_, err = h.ex.Withdraw("alice", "dai", nil)
	require.ErrorIs(t, err, dexerr.ErrPaused)

	// Queries and owner calls keep working.
	_, err = h.ex.GetReturn(id, "dai", e18(1), "eth")
	require.NoError(t, err)
	require.NoError(t, h.ex.FreezeTokens(owner, "eth"))

	require.NoError(t, h.ex.Resume(owner))
	require.NoError(t, h.ex.Deposit("alice", "dai", e18(1)))
}

func TestFrozenTokensAndPools(t *testing.T) {
	h := newHarness(t, 0)
	id := seedDaiEth(t, h)
	fund(t, h.ex, "alice", map[string]*big.Int{"dai": e18(5), "eth": e18(5)})
	swap := []router.SwapAction{{PoolID: id, TokenIn: "dai", AmountIn: e18(1), TokenOut: "eth"}}

	require.NoError(t, h.ex.FreezeTokens(owner, "eth"))
	require.Equal(t, []string{"eth"}, h.ex.Metadata().FrozenTokens)
	_, err := h.ex.Swap("alice", swap, "")
	require.ErrorIs(t, err, dexerr.ErrFrozen)
	require.Equal(t, uint32(8), dexerr.Code(err))
	require.ErrorIs(t, h.ex.Deposit("alice", "eth", e18(1)), dexerr.ErrFrozen)
	_, err = h.ex.AddLiquidity("alice", id, []*big.Int{e18(1), e18(2)}, nil, "")
	require.ErrorIs(t, err, dexerr.ErrFrozen)
	_, err = h.ex.PredictSwapActions(swap, nil)
	require.ErrorIs(t, err, dexerr.ErrFrozen)
	require.NoError(t, h.ex.UnfreezeTokens(owner, "eth"))

	require.ErrorIs(t, h.ex.FreezePool(owner, 7), dexerr.ErrInvalidPool)
	require.NoError(t, h.ex.FreezePool(owner, id))
	_, err = h.ex.Swap("alice", swap, "")
	require.ErrorIs(t, err, dexerr.ErrFrozen)
	_, err = h.ex.RemoveLiquidity("lp", id, e18(1), nil)
	require.ErrorIs(t, err, dexerr.ErrFrozen)
	info, err := h.ex.Pool(id)
	require.NoError(t, err)
	require.True(t, info.Frozen)

	require.NoError(t, h.ex.UnfreezePool(owner, id))
	_, err = h.ex.Swap("alice", swap, "")
	require.NoError(t, err)
}
