// Package exchange wires pools, balances and the router behind a single
// all-or-nothing call boundary.
package exchange

import (
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"swapCore/internal/dexerr"
	"swapCore/internal/metrics"
	"swapCore/internal/model"
	"swapCore/internal/pool"
	"swapCore/internal/storage"
)

// Exchange serializes calls against one State. A call either commits every
// change it made or none of them.
type Exchange struct {
	mu      sync.RWMutex
	state   *State
	logger  *zap.Logger
	sink    storage.Storage
	metrics *metrics.Metrics
	clock   func() uint64
}

type Option func(*Exchange)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Exchange) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSink receives the audit records of every committed call.
func WithSink(sink storage.Storage) Option {
	return func(e *Exchange) { e.sink = sink }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exchange) { e.metrics = m }
}

// WithClock overrides the block timestamp source (unix seconds).
func WithClock(clock func() uint64) Option {
	return func(e *Exchange) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func New(st *State, opts ...Option) *Exchange {
	st.normalize()
	e := &Exchange{
		state:  st,
		logger: zap.NewNop(),
		clock:  func() uint64 { return uint64(time.Now().Unix()) },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics.SetPools(st.Pools.Len())
	e.metrics.SetPending(len(st.Pending))
	return e
}

// Snapshot returns a deep copy of the live state.
func (e *Exchange) Snapshot() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Now returns the timestamp the next call would run at.
func (e *Exchange) Now() uint64 {
	return e.clock()
}

// tx is the working copy of one call.
type tx struct {
	st      *State
	now     uint64
	caller  string
	records []model.AuditRecord
	logs    []logLine
	after   []func(m *metrics.Metrics)
}

type logLine struct {
	msg    string
	fields []zap.Field
}

func (t *tx) env(referral string) pool.CallEnv {
	return pool.CallEnv{Now: t.now, Admin: t.st.adminFees(referral)}
}

func (t *tx) audit(r model.AuditRecord) {
	if r.Account == "" {
		r.Account = t.caller
	}
	t.records = append(t.records, r)
}

func (t *tx) info(msg string, fields ...zap.Field) {
	t.logs = append(t.logs, logLine{msg: msg, fields: fields})
}

func (t *tx) observe(fn func(m *metrics.Metrics)) {
	t.after = append(t.after, fn)
}

func (t *tx) requireOwner() error {
	if t.caller != t.st.Owner {
		return dexerr.ErrUnauthorized.Wrapf("%q is not the owner", t.caller)
	}
	return nil
}

// requireRunning blocks everyone but the owner while paused.
func (t *tx) requireRunning() error {
	if t.st.Paused && t.caller != t.st.Owner {
		return dexerr.ErrPaused
	}
	return nil
}

// mutate runs fn on a copy of the state and swaps it in when fn succeeds.
func (e *Exchange) mutate(op, caller string, fn func(t *tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := &tx{st: e.state.Clone(), now: e.clock(), caller: caller}
	if err := fn(t); err != nil {
		code := dexerr.Code(err)
		e.metrics.ObserveRejection(op, code)
		e.logger.Debug("call rejected",
			zap.String("op", op),
			zap.String("account", caller),
			zap.Uint32("code", code),
			zap.Error(err),
		)
		return err
	}

	recordedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for i := range t.records {
		t.st.AuditSeq++
		t.records[i].Seq = t.st.AuditSeq
		t.records[i].Timestamp = t.now
		t.records[i].RecordedAt = recordedAt
	}
	e.state = t.st

	for _, l := range t.logs {
		e.logger.Info(l.msg, append([]zap.Field{zap.String("op", op), zap.String("account", caller)}, l.fields...)...)
	}
	for _, fn := range t.after {
		fn(e.metrics)
	}
	e.metrics.SetPools(e.state.Pools.Len())
	e.metrics.SetPending(len(e.state.Pending))

	if e.sink != nil && len(t.records) > 0 {
		if err := e.sink.PutAuditBatch(t.records); err != nil {
			e.logger.Warn("audit sink write failed", zap.String("op", op), zap.Int("records", len(t.records)), zap.Error(err))
		}
	}
	return nil
}

// view runs fn against the live state under a read lock.
func (e *Exchange) view(fn func(st *State, now uint64) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.state, e.clock())
}

func amountString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func amountStrings(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = amountString(v)
	}
	return out
}

func poolRef(id uint64) *uint64 {
	return &id
}
