package main

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"swapCore/internal/config"
	"swapCore/internal/exchange"
	"swapCore/internal/metrics"
	"swapCore/internal/model"
	"swapCore/internal/snapshot"
	"swapCore/internal/storage"
)

type brokenStore struct{}

func (brokenStore) Load(context.Context) (*exchange.State, bool, error) { return nil, false, nil }
func (brokenStore) Save(context.Context, *exchange.State) error         { return errors.New("disk full") }

func TestSaveReleasesAuditOnlyAfterSnapshot(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")
	reg := prometheus.NewRegistry()
	s := &session{
		cfg:     config.Config{AuditOut: auditPath, Now: "1700000000"},
		logger:  zaptest.NewLogger(t),
		ctx:     context.Background(),
		store:   brokenStore{},
		reg:     reg,
		metrics: metrics.New(reg),
		audit:   &storage.Buffer{},
	}
	saved, err := exchange.NewState(exchange.Config{Owner: "root"})
	require.NoError(t, err)

	call := func() *exchange.Exchange {
		ex, err := s.newExchange(saved.Clone())
		require.NoError(t, err)
		require.NoError(t, ex.RegisterAccount("alice", "dai"))
		require.NoError(t, ex.Deposit("alice", "dai", big.NewInt(5)))
		require.NoError(t, ex.Deposit("alice", "dai", big.NewInt(7)))
		return ex
	}

	require.Error(t, s.save(call()))
	require.Zero(t, s.audit.Len())
	_, err = os.Stat(auditPath)
	require.True(t, os.IsNotExist(err))

	// The next call starts again from the last saved snapshot.
	s.store = &snapshot.FileStore{Path: filepath.Join(dir, "exchange.json")}
	require.NoError(t, s.save(call()))
	require.Zero(t, s.audit.Len())

	var seqs []uint64
	require.NoError(t, storage.ReadAudit(auditPath, 0, func(r model.AuditRecord) error {
		seqs = append(seqs, r.Seq)
		return nil
	}))
	require.Equal(t, []uint64{1, 2}, seqs)
}
