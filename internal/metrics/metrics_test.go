package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSwap(3, "STABLE_SWAP", "usdc", big.NewInt(1_500))
	m.ObserveSwap(3, "STABLE_SWAP", "usdc", big.NewInt(500))
	m.ObserveLiquidity(3, "add")
	m.ObserveRejection("swap", 4)
	m.ObserveRoute(2)
	m.SetPools(4)
	m.SetPending(1)

	require.Equal(t, 2.0, testutil.ToFloat64(m.SwapsTotal.WithLabelValues("3", "STABLE_SWAP")))
	require.Equal(t, 2000.0, testutil.ToFloat64(m.SwapVolume.WithLabelValues("3", "usdc")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LiquidityOps.WithLabelValues("3", "add")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("swap", "4")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.PoolsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PendingTransfers))
	require.Equal(t, 1, testutil.CollectAndCount(m.RouteHops))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSwap(0, "CONSTANT_PRODUCT", "a", big.NewInt(1))
	m.ObserveRejection("swap", 1)
	m.SetPools(1)
}
