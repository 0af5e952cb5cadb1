package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"swapCore/internal/model"
	"swapCore/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom, when set, ignores the stored cursor and rebuilds every
	// window from that unix timestamp on.
	RecomputeFrom uint64
	Cursor        CursorStore
}

// MetricsWriter persists finished windows.
type MetricsWriter interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// DecimalsSource resolves the decimals of a token for human-readable fees.
type DecimalsSource interface {
	Decimals(ctx context.Context, token string) (uint8, error)
}

// Aggregator rolls audit records into per-pool window metrics.
type Aggregator struct {
	cfg          Config
	writer       MetricsWriter
	decimals     DecimalsSource
	logger       *zap.Logger
	accumulators map[uint64]*Accumulator
}

func NewAggregator(cfg Config, writer MetricsWriter, decimals DecimalsSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:          cfg,
		writer:       writer,
		decimals:     decimals,
		logger:       logger,
		accumulators: make(map[uint64]*Accumulator),
	}
}

// Stats summarizes one Run.
type Stats struct {
	Total   int    `json:"total"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
	Late    int    `json:"late"`
	Failed  int    `json:"failed"`
	Windows int    `json:"windows"`
	Cursor  uint64 `json:"cursor"`
}

// Run executes aggregation over an audit JSONL file. Windows are aligned for
// every pool, so the cursor only ever advances to the last record of a closed
// window and a rerun rebuilds the open window in full.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Stats, error) {
	var stats Stats
	if a.writer == nil {
		return stats, fmt.Errorf("metrics writer is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	after, err := a.loadCursor(ctx)
	if err != nil {
		return stats, err
	}
	from := uint64(0)
	if a.cfg.RecomputeFrom > 0 {
		from = windowStart(a.cfg.RecomputeFrom, a.cfg.WindowSeconds)
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	var current uint64
	open := false
	lastSeq, boundary := after, after

	err = storage.ReadAudit(inputPath, after, func(rec model.AuditRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++
		if rec.Timestamp < from {
			stats.Skipped++
			lastSeq = rec.Seq
			return nil
		}
		ws := windowStart(rec.Timestamp, a.cfg.WindowSeconds)
		if open && ws < current {
			stats.Late++
			a.logger.Warn("record behind open window", zap.Uint64("seq", rec.Seq), zap.Uint64("timestamp", rec.Timestamp))
			lastSeq = rec.Seq
			return nil
		}
		if open && ws > current {
			batch = append(batch, a.closeWindow(ctx)...)
			boundary = lastSeq
			if len(batch) >= a.cfg.BatchSize {
				if err := a.flush(ctx, batch, boundary); err != nil {
					return err
				}
				stats.Windows += len(batch)
				batch = batch[:0]
			}
		}
		current, open = ws, true
		lastSeq = rec.Seq

		id, ok := rec.Pool()
		if !ok {
			stats.Skipped++
			return nil
		}
		acc := a.accumulators[id]
		if acc == nil {
			acc = NewAccumulator(id, ws, ws+a.cfg.WindowSeconds)
			a.accumulators[id] = acc
		}
		applied, err := acc.Add(rec)
		if err != nil {
			stats.Failed++
			a.logger.Warn("aggregate record", zap.Error(err), zap.Uint64("seq", rec.Seq), zap.Uint64("pool_id", id), zap.String("kind", rec.Kind))
			return nil
		}
		if applied {
			stats.Applied++
		} else {
			stats.Skipped++
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	// The open window is written but the cursor stays at the last boundary.
	batch = append(batch, a.closeWindow(ctx)...)
	if err := a.flush(ctx, batch, boundary); err != nil {
		return stats, err
	}
	stats.Windows += len(batch)
	stats.Cursor = boundary

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("applied", stats.Applied),
		zap.Int("skipped", stats.Skipped),
		zap.Int("late", stats.Late),
		zap.Int("failed", stats.Failed),
		zap.Int("windows", stats.Windows),
		zap.Uint64("cursor", stats.Cursor),
	)
	return stats, nil
}

func (a *Aggregator) loadCursor(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 || a.cfg.Cursor == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.Cursor.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) flush(ctx context.Context, batch []model.PoolWindowMetrics, cursor uint64) error {
	if len(batch) > 0 {
		if err := a.writer.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	if a.cfg.Cursor == nil {
		return nil
	}
	return a.cfg.Cursor.Save(ctx, cursor)
}

// closeWindow turns every open accumulator into metrics ordered by pool id.
func (a *Aggregator) closeWindow(ctx context.Context) []model.PoolWindowMetrics {
	ids := make([]uint64, 0, len(a.accumulators))
	for id := range a.accumulators {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]model.PoolWindowMetrics, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.metrics(ctx, a.accumulators[id]))
	}
	a.accumulators = make(map[uint64]*Accumulator)
	return out
}

func (a *Aggregator) metrics(ctx context.Context, acc *Accumulator) model.PoolWindowMetrics {
	m := model.PoolWindowMetrics{
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		LiquidityOps:   acc.LiquidityOps,
		AdminShares:    acc.AdminShares.String(),
		ReferralShares: acc.ReferralShares.String(),
	}
	for _, token := range acc.TokenList() {
		tot := acc.Tokens[token]
		tm := model.WindowTokenMetrics{
			Token:     token,
			VolumeIn:  tot.VolumeIn.String(),
			VolumeOut: tot.VolumeOut.String(),
			Fee:       tot.Fee.String(),
		}
		if decimals, ok := a.tokenDecimals(ctx, token); ok {
			human := formatTokenAmount(tot.Fee, decimals)
			tm.FeeHuman = &human
		}
		m.Tokens = append(m.Tokens, tm)
	}
	return m
}

func (a *Aggregator) tokenDecimals(ctx context.Context, token string) (uint8, bool) {
	if a.decimals == nil {
		return 0, false
	}
	decimals, err := a.decimals.Decimals(ctx, token)
	if err != nil {
		a.logger.Debug("token decimals", zap.String("token", token), zap.Error(err))
		return 0, false
	}
	return decimals, true
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}
