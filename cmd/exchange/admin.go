package main

import (
	"github.com/spf13/cobra"

	"swapCore/internal/exchange"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Owner-only controls",
	}

	metadata := &cobra.Command{
		Use:   "metadata",
		Short: "Show owner, fees, referrals, and freezes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				return ex.Metadata(), nil
			})
		},
	}
	cmd.AddCommand(metadata)

	simple := func(use, short string, call func(ex *exchange.Exchange, caller string) error) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
					if err := call(ex, account(cmd)); err != nil {
						return nil, err
					}
					return ex.Metadata(), nil
				})
			},
		}
		addAccountFlag(c, "owner account")
		return c
	}

	cmd.AddCommand(simple("pause", "Reject every non-owner call", func(ex *exchange.Exchange, caller string) error {
		return ex.Pause(caller)
	}))
	cmd.AddCommand(simple("resume", "Accept calls again", func(ex *exchange.Exchange, caller string) error {
		return ex.Resume(caller)
	}))

	var tokens []string
	freezeTokens := simple("freeze-tokens", "Block every operation touching the tokens", func(ex *exchange.Exchange, caller string) error {
		return ex.FreezeTokens(caller, tokens...)
	})
	freezeTokens.Flags().StringSliceVar(&tokens, "token", nil, "tokens (comma-separated)")
	unfreezeTokens := simple("unfreeze-tokens", "Lift a token freeze", func(ex *exchange.Exchange, caller string) error {
		return ex.UnfreezeTokens(caller, tokens...)
	})
	unfreezeTokens.Flags().StringSliceVar(&tokens, "token", nil, "tokens (comma-separated)")
	cmd.AddCommand(freezeTokens, unfreezeTokens)

	var pool uint64
	freezePool := simple("freeze-pool", "Block every operation on a pool", func(ex *exchange.Exchange, caller string) error {
		return ex.FreezePool(caller, pool)
	})
	freezePool.Flags().Uint64Var(&pool, "pool", 0, "pool id")
	_ = freezePool.MarkFlagRequired("pool")
	unfreezePool := simple("unfreeze-pool", "Lift a pool freeze", func(ex *exchange.Exchange, caller string) error {
		return ex.UnfreezePool(caller, pool)
	})
	unfreezePool.Flags().Uint64Var(&pool, "pool", 0, "pool id")
	_ = unfreezePool.MarkFlagRequired("pool")
	cmd.AddCommand(freezePool, unfreezePool)

	var referral string
	var feeBps uint32
	setReferral := simple("set-referral", "Register a referral and its cut of the admin fee", func(ex *exchange.Exchange, caller string) error {
		return ex.SetReferral(caller, referral, feeBps)
	})
	setReferral.Flags().StringVar(&referral, "referral", "", "referral account")
	setReferral.Flags().Uint32Var(&feeBps, "fee-bps", 0, "referral share of the admin fee in basis points")
	_ = setReferral.MarkFlagRequired("referral")
	removeReferral := simple("remove-referral", "Drop a referral", func(ex *exchange.Exchange, caller string) error {
		return ex.RemoveReferral(caller, referral)
	})
	removeReferral.Flags().StringVar(&referral, "referral", "", "referral account")
	_ = removeReferral.MarkFlagRequired("referral")
	cmd.AddCommand(setReferral, removeReferral)

	var next string
	setOwner := simple("set-owner", "Hand ownership to another account", func(ex *exchange.Exchange, caller string) error {
		return ex.SetOwner(caller, next)
	})
	setOwner.Flags().StringVar(&next, "new-owner", "", "next owner account")
	_ = setOwner.MarkFlagRequired("new-owner")
	cmd.AddCommand(setOwner)

	var bps uint32
	setAdminFee := simple("set-admin-fee", "Change the admin share of trade fees", func(ex *exchange.Exchange, caller string) error {
		return ex.SetAdminFee(caller, bps)
	})
	setAdminFee.Flags().Uint32Var(&bps, "bps", 0, "admin fee in basis points of the trade fee")
	_ = setAdminFee.MarkFlagRequired("bps")
	cmd.AddCommand(setAdminFee)

	return cmd
}
