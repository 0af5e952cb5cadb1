package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapCore/internal/model"
)

func TestNewStoreNeedsDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestNullable(t *testing.T) {
	require.Nil(t, nullable(""))
	require.Equal(t, "5", *nullable("5"))
}

// TestStoreRoundTrip runs against a live database named by EXCHANGE_TEST_PG_DSN.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("EXCHANGE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("EXCHANGE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	name := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	_, ok, err := s.LoadState(ctx, name)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, s.SaveState(ctx, name, 42))
	seq, ok, err := s.LoadState(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), seq)

	require.NoError(t, s.SaveSnapshot(ctx, name, []byte(`{"version":1}`)))
	data, ok, err := s.LoadSnapshot(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"version":1}`, string(data))

	poolID := uint64(time.Now().UnixNano() % 1_000_000)
	require.NoError(t, s.UpsertPools(ctx, []model.PoolInfo{{
		ID: poolID, Kind: "CONSTANT_PRODUCT", Tokens: []string{"dai", "eth"},
		Reserves: []string{"100", "200"}, TotalFee: 30, ShareSupply: "1000", SharePrice: "100000000",
	}}))
	require.NoError(t, s.PutAuditRecords(ctx, []model.AuditRecord{{
		Seq: uint64(time.Now().UnixNano()), Kind: model.AuditSwap, PoolID: &poolID, Account: "alice",
		TokenIn: "dai", AmountIn: "10", TokenOut: "eth", AmountOut: "18", RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}))
}
