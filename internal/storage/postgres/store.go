package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapCore/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for pools, audit records and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool snapshots.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolInfo) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		var amp *int64
		if p.Amp != nil {
			v := int64(p.Amp.Current)
			amp = &v
		}
		batch.Queue(`
			INSERT INTO pools (
				pool_id, kind, tokens, reserves, total_fee, share_supply, share_price, amp, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				reserves = EXCLUDED.reserves,
				total_fee = EXCLUDED.total_fee,
				share_supply = EXCLUDED.share_supply,
				share_price = EXCLUDED.share_price,
				amp = EXCLUDED.amp,
				updated_at = now()
		`,
			int64(p.ID),
			p.Kind,
			p.Tokens,
			p.Reserves,
			int32(p.TotalFee),
			p.ShareSupply,
			p.SharePrice,
			amp,
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutAuditRecords inserts audit records, ignoring sequence numbers already stored.
func (s *Store) PutAuditRecords(ctx context.Context, records []model.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		var poolID *int64
		if id, ok := r.Pool(); ok {
			v := int64(id)
			poolID = &v
		}
		batch.Queue(`
			INSERT INTO audit_records (
				seq, kind, pool_id, account, token_in, amount_in, token_out, amount_out,
				fee, fee_token, admin_fee, exchange_shares, referral_shares, referral, shares, detail, ts, recorded_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(r.Seq),
			r.Kind,
			poolID,
			r.Account,
			nullable(r.TokenIn),
			nullable(r.AmountIn),
			nullable(r.TokenOut),
			nullable(r.AmountOut),
			nullable(r.Fee),
			nullable(r.FeeToken),
			nullable(r.AdminFee),
			nullable(r.ExchangeShares),
			nullable(r.ReferralShares),
			nullable(r.Referral),
			nullable(r.Shares),
			nullable(r.Detail),
			int64(r.Timestamp),
			r.RecordedAt,
		)
	}
	return s.sendBatch(ctx, batch)
}

// AuditSink adapts the store to the context-free audit sink interface.
type AuditSink struct {
	Ctx   context.Context
	Store *Store
}

func (a AuditSink) PutAuditBatch(records []model.AuditRecord) error {
	return a.Store.PutAuditRecords(a.Ctx, records)
}

// UpsertWindowMetrics inserts or updates window metrics and their token rows.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, liquidity_ops, admin_shares, referral_shares, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				liquidity_ops = EXCLUDED.liquidity_ops,
				admin_shares = EXCLUDED.admin_shares,
				referral_shares = EXCLUDED.referral_shares,
				updated_at = now()
		`,
			int64(m.PoolID),
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.LiquidityOps),
			m.AdminShares,
			m.ReferralShares,
		)
		for _, tm := range m.Tokens {
			batch.Queue(`
				INSERT INTO pool_window_token_metrics (
					pool_id, window_size_seconds, window_start_ts, token, volume_in, volume_out, fee, fee_human
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
				ON CONFLICT (pool_id, window_size_seconds, window_start_ts, token)
				DO UPDATE SET
					volume_in = EXCLUDED.volume_in,
					volume_out = EXCLUDED.volume_out,
					fee = EXCLUDED.fee,
					fee_human = EXCLUDED.fee_human
			`,
				int64(m.PoolID),
				m.WindowSizeSecs,
				m.WindowStart,
				tm.Token,
				tm.VolumeIn,
				tm.VolumeOut,
				tm.Fee,
				tm.FeeHuman,
			)
		}
	}
	return s.sendBatch(ctx, batch)
}

// LoadState returns last_processed_seq for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_seq FROM exchange_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(seq), true, nil
}

// SaveState upserts last_processed_seq for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exchange_state (name, last_processed_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_seq = EXCLUDED.last_processed_seq, updated_at = now()
	`, name, int64(seq))
	return err
}

// LoadSnapshot returns the stored exchange snapshot for a name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT state FROM exchange_snapshots WHERE name=$1`, name)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// SaveSnapshot upserts the exchange snapshot for a name.
func (s *Store) SaveSnapshot(ctx context.Context, name string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exchange_snapshots (name, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET state = EXCLUDED.state, updated_at = now()
	`, name, data)
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
