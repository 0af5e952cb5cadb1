package main

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapCore/internal/aggregate"
	"swapCore/internal/chain"
	"swapCore/internal/config"
	"swapCore/internal/storage/postgres"
	"swapCore/internal/tokenmeta"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Upsert every pool's current state into Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			if s.pg == nil {
				return fmt.Errorf("pg dsn is required")
			}

			ex, err := s.load()
			if err != nil {
				return err
			}
			pools, err := ex.Pools(0, 0)
			if err != nil {
				return err
			}
			if err := s.pg.UpsertPools(s.ctx, pools); err != nil {
				return err
			}
			s.logger.Info("pools exported", zap.Int("pools", len(pools)), zap.String("pg_dsn", redactDSN(s.cfg.PGDSN)))
			return printJSON(cmd, map[string]int{"pools": len(pools)})
		},
	}
}

// ReconcileLine compares what the exchange owes with what custody holds.
type ReconcileLine struct {
	Token    string `json:"token"`
	Internal string `json:"internal"`
	OnChain  string `json:"on_chain"`
	Surplus  string `json:"surplus"`
	Short    bool   `json:"short"`
}

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare internal holdings with on-chain ERC20 balances of the custody address",
		RunE:  runReconcile,
	}
	cmd.Flags().String("custody", "", "address holding the exchange's tokens")
	cmd.Flags().StringSlice("tokens", nil, "ERC20 token ids to check, default every address-like token held")
	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if s.cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if _, err := tokenmeta.ParseAddress(s.cfg.Custody); err != nil {
		return fmt.Errorf("custody: %w", err)
	}

	ex, err := s.load()
	if err != nil {
		return err
	}
	internal := make(map[string]*big.Int)
	var held []string
	for _, h := range ex.Holdings() {
		internal[h.Token] = h.Amount
		if _, err := tokenmeta.ParseAddress(h.Token); err == nil {
			held = append(held, h.Token)
		}
	}
	tokens := s.cfg.Tokens
	if len(tokens) == 0 {
		tokens = held
	}

	chainClient, err := chain.NewClient(s.ctx, s.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()
	resolver := tokenmeta.NewResolver(chainClient, s.cfg.MaxRetries, s.cfg.RetryBackoff, s.logger)

	lines := make([]ReconcileLine, 0, len(tokens))
	var short []string
	for _, token := range tokens {
		onChain, err := resolver.BalanceOf(s.ctx, token, s.cfg.Custody, nil)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", token, err)
		}
		owed := internal[token]
		if owed == nil {
			owed = new(big.Int)
		}
		line := reconcileLine(token, owed, onChain)
		if line.Short {
			short = append(short, token)
		}
		lines = append(lines, line)
	}

	s.logger.Info("reconcile complete", zap.Int("tokens", len(lines)), zap.Strings("short", short))
	if err := printJSON(cmd, lines); err != nil {
		return err
	}
	if len(short) > 0 {
		return fmt.Errorf("custody is short of %s", strings.Join(short, ", "))
	}
	return nil
}

func reconcileLine(token string, internal, onChain *big.Int) ReconcileLine {
	surplus := new(big.Int).Sub(onChain, internal)
	return ReconcileLine{
		Token:    token,
		Internal: internal.String(),
		OnChain:  onChain.String(),
		Surplus:  surplus.String(),
		Short:    surplus.Sign() < 0,
	}
}

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate audit records into pool window metrics",
		RunE:  runAggregate,
	}
	cmd.Flags().String("in", "./data/audit.jsonl", "input audit JSONL")
	cmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	cmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	cmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	cmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	cmd.Flags().StringSlice("decimals", nil, "token decimals for human-readable fees (token=decimals, comma-separated)")
	return cmd
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	windowDuration, err := time.ParseDuration(cfg.Window)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	if windowDuration <= 0 {
		return fmt.Errorf("window must be positive")
	}
	windowSeconds := uint64(windowDuration.Seconds())
	if windowSeconds == 0 {
		return fmt.Errorf("window must be at least 1s")
	}

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	sources := []aggregate.DecimalsSource{aggregate.StaticDecimals(cfg.Decimals)}
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		sources = append(sources, tokenmeta.NewResolver(chainClient, cfg.MaxRetries, cfg.RetryBackoff, logger))
	}

	var cursor aggregate.CursorStore
	if cfg.StateFile != "" {
		cursor = &aggregate.FileCursorStore{Path: cfg.StateFile}
	} else {
		cursor = &aggregate.DBCursorStore{Store: store, Name: fmt.Sprintf("aggregator:%d", windowSeconds)}
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: recomputeFrom,
		Cursor:        cursor,
	}, store, aggregate.NewTokenDecimalsCache(sources...), logger)

	logger.Info("aggregate start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", recomputeFrom),
	)

	stats, err := agg.Run(ctx, cfg.Input)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}
