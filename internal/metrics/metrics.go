// Package metrics exposes Prometheus instruments for exchange activity.
package metrics

import (
	"math/big"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "swapcore"
	subsystem = "exchange"
)

// Metrics holds every exchange instrument. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	SwapsTotal       *prometheus.CounterVec
	SwapVolume       *prometheus.CounterVec
	LiquidityOps     *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	RouteHops        prometheus.Histogram
	PoolsTotal       prometheus.Gauge
	PendingTransfers prometheus.Gauge
}

// New registers the instruments with reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		SwapsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "swaps_total",
				Help:      "Swaps executed per pool",
			},
			[]string{"pool_id", "kind"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "swap_volume_total",
				Help:      "Swap input volume in base units",
			},
			[]string{"pool_id", "token"},
		),
		LiquidityOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "liquidity_ops_total",
				Help:      "Liquidity additions and removals per pool",
			},
			[]string{"pool_id", "op"},
		),
		Rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rejections_total",
				Help:      "Calls aborted, by operation and error code",
			},
			[]string{"op", "code"},
		),
		RouteHops: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_hops",
				Help:      "Hops per executed action list",
				Buckets:   []float64{1, 2, 3, 4, 6, 8},
			},
		),
		PoolsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pools",
				Help:      "Registered pools",
			},
		),
		PendingTransfers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pending_transfers",
				Help:      "Outward transfers awaiting resolution",
			},
		),
	}
}

func (m *Metrics) ObserveSwap(poolID uint64, kind, tokenIn string, amountIn *big.Int) {
	if m == nil {
		return
	}
	id := strconv.FormatUint(poolID, 10)
	m.SwapsTotal.WithLabelValues(id, kind).Inc()
	if amountIn != nil {
		f, _ := new(big.Float).SetInt(amountIn).Float64()
		m.SwapVolume.WithLabelValues(id, tokenIn).Add(f)
	}
}

func (m *Metrics) ObserveRoute(hops int) {
	if m == nil {
		return
	}
	m.RouteHops.Observe(float64(hops))
}

func (m *Metrics) ObserveLiquidity(poolID uint64, op string) {
	if m == nil {
		return
	}
	m.LiquidityOps.WithLabelValues(strconv.FormatUint(poolID, 10), op).Inc()
}

func (m *Metrics) ObserveRejection(op string, code uint32) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(op, strconv.FormatUint(uint64(code), 10)).Inc()
}

func (m *Metrics) SetPools(n uint64) {
	if m == nil {
		return
	}
	m.PoolsTotal.Set(float64(n))
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingTransfers.Set(float64(n))
}
