package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapCore/internal/config"
	"swapCore/internal/exchange"
	"swapCore/internal/metrics"
	"swapCore/internal/snapshot"
	"swapCore/internal/storage"
	"swapCore/internal/storage/postgres"
)

// session is everything one command invocation holds open.
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	ctx     context.Context
	stop    context.CancelFunc
	pg      *postgres.Store
	store   snapshot.Store
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	// audit holds the records of calls whose snapshot is not saved yet.
	audit *storage.Buffer
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signalContext()
	s := &session{cfg: cfg, logger: logger, ctx: ctx, stop: stop, reg: prometheus.NewRegistry(), audit: &storage.Buffer{}}
	s.metrics = metrics.New(s.reg)

	if cfg.PGDSN != "" {
		s.pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := s.pg.Migrate(ctx); err != nil {
			s.close()
			return nil, err
		}
	}

	switch cfg.SnapshotStore {
	case config.SnapshotPostgres:
		if s.pg == nil {
			s.close()
			return nil, fmt.Errorf("pg dsn is required for the postgres snapshot store")
		}
		s.store = &snapshot.DBStore{Blobs: s.pg, Name: cfg.ExchangeID}
	default:
		s.store = &snapshot.FileStore{Path: cfg.StateFile}
	}

	logger.Debug("session open",
		zap.String("snapshot_store", cfg.SnapshotStore),
		zap.String("state", cfg.StateFile),
		zap.String("audit_out", cfg.AuditOut),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)
	return s, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (s *session) close() {
	if s.pg != nil {
		s.pg.Close()
	}
	s.stop()
	_ = s.logger.Sync()
}

// sink fans audit records out to the JSONL log and, when configured, Postgres.
func (s *session) sink() storage.Storage {
	sinks := storage.Multi{storage.NewJsonlStorage(s.cfg.AuditOut)}
	if s.pg != nil {
		sinks = append(sinks, postgres.AuditSink{Ctx: s.ctx, Store: s.pg})
	}
	return sinks
}

func (s *session) newExchange(st *exchange.State) (*exchange.Exchange, error) {
	clock, err := s.cfg.Clock()
	if err != nil {
		return nil, err
	}
	return exchange.New(st,
		exchange.WithLogger(s.logger),
		exchange.WithSink(s.audit),
		exchange.WithMetrics(s.metrics),
		exchange.WithClock(clock),
	), nil
}

// load opens the persisted exchange.
func (s *session) load() (*exchange.Exchange, error) {
	st, ok, err := s.store.Load(s.ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no exchange snapshot found; run init first")
	}
	return s.newExchange(st)
}

// save persists the exchange after a successful call, then releases the
// buffered audit records and refreshes the metrics textfile. Records of a
// snapshot that failed to save are dropped with it.
func (s *session) save(ex *exchange.Exchange) error {
	if err := s.store.Save(s.ctx, ex.Snapshot()); err != nil {
		s.audit.Reset()
		return err
	}
	if err := s.audit.Flush(s.sink()); err != nil {
		s.logger.Warn("audit sink write failed", zap.Int("records", s.audit.Len()), zap.Error(err))
		s.audit.Reset()
	}
	return s.writeMetrics()
}

func (s *session) writeMetrics() error {
	if s.cfg.MetricsOut == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(s.cfg.MetricsOut, s.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// mutate loads the exchange, runs fn, persists on success, and prints fn's
// result as JSON.
func mutate(cmd *cobra.Command, fn func(ex *exchange.Exchange) (interface{}, error)) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ex, err := s.load()
	if err != nil {
		return err
	}
	out, err := fn(ex)
	if err != nil {
		_ = s.writeMetrics()
		return err
	}
	if err := s.save(ex); err != nil {
		return err
	}
	return printJSON(cmd, out)
}

// query loads the exchange read-only and prints fn's result as JSON.
func query(cmd *cobra.Command, fn func(ex *exchange.Exchange) (interface{}, error)) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ex, err := s.load()
	if err != nil {
		return err
	}
	out, err := fn(ex)
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}
