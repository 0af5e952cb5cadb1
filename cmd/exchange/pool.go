package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapCore/internal/chain"
	"swapCore/internal/exchange"
	"swapCore/internal/tokenmeta"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty exchange snapshot",
		RunE:  runInit,
	}
	cmd.Flags().String("owner", "", "owner account")
	cmd.Flags().Uint32("admin-fee-bps", 2000, "share of the trade fee taken as admin fee, in basis points")
	cmd.Flags().String("init-shares", "", "shares minted by the first deposit into a constant-product pool")
	cmd.Flags().Bool("force", false, "overwrite an existing snapshot")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		_, exists, err := s.store.Load(s.ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("exchange snapshot already exists; pass --force to replace it")
		}
	}

	initShares, err := s.cfg.InitSharesAmount()
	if err != nil {
		return err
	}
	st, err := exchange.NewState(exchange.Config{
		Owner:       s.cfg.Owner,
		ExchangeID:  s.cfg.ExchangeID,
		AdminFeeBps: s.cfg.AdminFeeBps,
		InitShares:  initShares,
	})
	if err != nil {
		return err
	}
	ex, err := s.newExchange(st)
	if err != nil {
		return err
	}
	if err := s.save(ex); err != nil {
		return err
	}
	s.logger.Info("exchange initialized",
		zap.String("owner", s.cfg.Owner),
		zap.String("exchange_id", s.cfg.ExchangeID),
		zap.Uint32("admin_fee_bps", s.cfg.AdminFeeBps),
		zap.String("snapshot_store", s.cfg.SnapshotStore),
	)
	return printJSON(cmd, ex.Metadata())
}

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Create, inspect, and tune pools",
	}

	addSimple := &cobra.Command{
		Use:   "add-simple",
		Short: "Create a two-token constant-product pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, _ := cmd.Flags().GetStringSlice("token")
			fee, _ := cmd.Flags().GetUint32("fee")
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				id, err := ex.AddSimplePool(account(cmd), tokens, fee)
				if err != nil {
					return nil, err
				}
				return ex.Pool(id)
			})
		},
	}
	addAccountFlag(addSimple, "creating account")
	addSimple.Flags().StringSlice("token", nil, "the two pool tokens (comma-separated)")
	addSimple.Flags().Uint32("fee", 30, "total fee in basis points")
	cmd.AddCommand(addSimple)

	addStable := &cobra.Command{
		Use:   "add-stable",
		Short: "Create a stable-swap pool (owner only)",
		RunE:  runAddStable,
	}
	addAccountFlag(addStable, "owner account")
	addStable.Flags().StringSlice("token", nil, "pool tokens (comma-separated)")
	addStable.Flags().UintSlice("decimals", nil, "token decimals in token order; resolved over --rpc when omitted")
	addStable.Flags().Uint32("fee", 5, "total fee in basis points")
	addStable.Flags().Uint64("amp", 100, "amplification factor")
	cmd.AddCommand(addStable)

	show := &cobra.Command{
		Use:   "show",
		Short: "Describe one pool, or list pools when --pool is omitted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				if cmd.Flags().Changed("pool") {
					return ex.Pool(poolID(cmd))
				}
				from, _ := cmd.Flags().GetUint64("from")
				limit, _ := cmd.Flags().GetUint64("limit")
				return ex.Pools(from, limit)
			})
		},
	}
	show.Flags().Uint64("pool", 0, "pool id")
	show.Flags().Uint64("from", 0, "first pool id to list")
	show.Flags().Uint64("limit", 0, "pools to list, 0 lists all")
	cmd.AddCommand(show)

	ramp := &cobra.Command{
		Use:   "ramp",
		Short: "Ramp a stable pool's amplification factor (owner only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, _ := cmd.Flags().GetUint64("target")
			stop, _ := cmd.Flags().GetUint64("stop-ts")
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				if err := ex.RampAmp(account(cmd), poolID(cmd), target, stop); err != nil {
					return nil, err
				}
				return ex.Pool(poolID(cmd))
			})
		},
	}
	addAccountFlag(ramp, "owner account")
	addPoolFlag(ramp)
	ramp.Flags().Uint64("target", 0, "target amplification factor")
	ramp.Flags().Uint64("stop-ts", 0, "unix timestamp the ramp ends at")
	_ = ramp.MarkFlagRequired("target")
	_ = ramp.MarkFlagRequired("stop-ts")
	cmd.AddCommand(ramp)

	stopRamp := &cobra.Command{
		Use:   "stop-ramp",
		Short: "Freeze a stable pool's amplification factor at its current value (owner only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				if err := ex.StopRampAmp(account(cmd), poolID(cmd)); err != nil {
					return nil, err
				}
				return ex.Pool(poolID(cmd))
			})
		},
	}
	addAccountFlag(stopRamp, "owner account")
	addPoolFlag(stopRamp)
	cmd.AddCommand(stopRamp)

	return cmd
}

func runAddStable(cmd *cobra.Command, _ []string) error {
	tokens, _ := cmd.Flags().GetStringSlice("token")
	raw, _ := cmd.Flags().GetUintSlice("decimals")
	fee, _ := cmd.Flags().GetUint32("fee")
	amp, _ := cmd.Flags().GetUint64("amp")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	decimals := make([]uint8, 0, len(raw))
	for _, d := range raw {
		if d > 255 {
			return fmt.Errorf("decimals %d out of range", d)
		}
		decimals = append(decimals, uint8(d))
	}
	if len(decimals) == 0 {
		if s.cfg.RPCURL == "" {
			return fmt.Errorf("--decimals or --rpc is required")
		}
		chainClient, err := chain.NewClient(s.ctx, s.cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		resolver := tokenmeta.NewResolver(chainClient, s.cfg.MaxRetries, s.cfg.RetryBackoff, s.logger)
		decimals, err = resolver.DecimalsOf(s.ctx, tokens)
		if err != nil {
			return err
		}
		s.logger.Info("token decimals resolved", zap.Strings("tokens", tokens), zap.Uint8s("decimals", decimals))
	}

	ex, err := s.load()
	if err != nil {
		return err
	}
	id, err := ex.AddStablePool(account(cmd), tokens, decimals, fee, amp)
	if err != nil {
		return err
	}
	if err := s.save(ex); err != nil {
		return err
	}
	info, err := ex.Pool(id)
	if err != nil {
		return err
	}
	return printJSON(cmd, info)
}
