package main

import (
	"math/big"

	"github.com/spf13/cobra"

	"swapCore/internal/exchange"
)

func amountText(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		if v == nil {
			out[i] = "0"
			continue
		}
		out[i] = v.String()
	}
	return out
}

func newAddLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Add deposited tokens to a pool for shares",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amounts, err := flagAmounts(cmd, "amounts")
			if err != nil {
				return err
			}
			minShares, err := flagAmount(cmd, "min-shares")
			if err != nil {
				return err
			}
			referral, _ := cmd.Flags().GetString("referral")
			if preview, _ := cmd.Flags().GetBool("preview"); preview {
				return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
					shares, err := ex.PredictAddLiquidity(poolID(cmd), amounts)
					if err != nil {
						return nil, err
					}
					return map[string]string{"shares": shares.String()}, nil
				})
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				res, err := ex.AddLiquidity(account(cmd), poolID(cmd), amounts, minShares, referral)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"shares":  res.Shares.String(),
					"amounts": amountText(res.Amounts),
				}, nil
			})
		},
	}
	cmd.Flags().String("account", "", "providing account")
	addPoolFlag(cmd)
	cmd.Flags().StringSlice("amounts", nil, "amounts in pool token order (comma-separated)")
	cmd.Flags().String("min-shares", "", "fail when fewer shares would be minted")
	cmd.Flags().String("referral", "", "referral account for stable-pool imbalance fees")
	cmd.Flags().Bool("preview", false, "only predict the minted shares")
	_ = cmd.MarkFlagRequired("amounts")
	return cmd
}

func newRemoveLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-liquidity",
		Short: "Burn shares for a proportional slice of the reserves",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shares, err := requiredAmount(cmd, "shares")
			if err != nil {
				return err
			}
			minAmounts, err := flagAmounts(cmd, "min-amounts")
			if err != nil {
				return err
			}
			if len(minAmounts) == 0 {
				minAmounts = nil
			}
			if preview, _ := cmd.Flags().GetBool("preview"); preview {
				return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
					out, err := ex.PredictRemoveLiquidity(poolID(cmd), shares)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{"amounts": amountText(out)}, nil
				})
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				out, err := ex.RemoveLiquidity(account(cmd), poolID(cmd), shares, minAmounts)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"amounts": amountText(out)}, nil
			})
		},
	}
	cmd.Flags().String("account", "", "withdrawing account")
	addPoolFlag(cmd)
	cmd.Flags().String("shares", "", "shares to burn")
	cmd.Flags().StringSlice("min-amounts", nil, "minimum amounts in pool token order")
	cmd.Flags().Bool("preview", false, "only predict the returned amounts")
	return cmd
}

func newRemoveLiquidityByTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-liquidity-by-tokens",
		Short: "Withdraw exact amounts from a stable pool, burning the shares they cost",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amounts, err := flagAmounts(cmd, "amounts")
			if err != nil {
				return err
			}
			maxBurn, err := flagAmount(cmd, "max-burn")
			if err != nil {
				return err
			}
			referral, _ := cmd.Flags().GetString("referral")
			if preview, _ := cmd.Flags().GetBool("preview"); preview {
				return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
					burn, err := ex.PredictRemoveLiquidityByTokens(poolID(cmd), amounts)
					if err != nil {
						return nil, err
					}
					return map[string]string{"burned_shares": burn.String()}, nil
				})
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				burn, err := ex.RemoveLiquidityByTokens(account(cmd), poolID(cmd), amounts, maxBurn, referral)
				if err != nil {
					return nil, err
				}
				return map[string]string{"burned_shares": burn.String()}, nil
			})
		},
	}
	cmd.Flags().String("account", "", "withdrawing account")
	addPoolFlag(cmd)
	cmd.Flags().StringSlice("amounts", nil, "amounts in pool token order (comma-separated)")
	cmd.Flags().String("max-burn", "", "fail when more shares would be burned")
	cmd.Flags().String("referral", "", "referral account for imbalance fees")
	cmd.Flags().Bool("preview", false, "only predict the burned shares")
	_ = cmd.MarkFlagRequired("amounts")
	return cmd
}

func newSharesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shares",
		Short: "Manage pool share balances",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show an account's shares of a pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				shares, err := ex.Shares(poolID(cmd), account(cmd))
				if err != nil {
					return nil, err
				}
				return map[string]string{"shares": shares.String()}, nil
			})
		},
	}
	addAccountFlag(show, "share holder")
	addPoolFlag(show)

	register := &cobra.Command{
		Use:   "register",
		Short: "Open a zero share balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				return map[string]interface{}{"pool_id": poolID(cmd), "account": account(cmd)}, ex.RegisterShares(account(cmd), poolID(cmd))
			})
		},
	}
	addAccountFlag(register, "share holder")
	addPoolFlag(register)

	unregister := &cobra.Command{
		Use:   "unregister",
		Short: "Drop an empty share balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				return map[string]interface{}{"pool_id": poolID(cmd), "account": account(cmd)}, ex.UnregisterShares(account(cmd), poolID(cmd))
			})
		},
	}
	addAccountFlag(unregister, "share holder")
	addPoolFlag(unregister)

	transfer := &cobra.Command{
		Use:   "transfer",
		Short: "Move shares to another registered holder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			to, _ := cmd.Flags().GetString("to")
			amount, err := requiredAmount(cmd, "amount")
			if err != nil {
				return err
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				if err := ex.TransferShares(account(cmd), poolID(cmd), to, amount); err != nil {
					return nil, err
				}
				return ex.Shares(poolID(cmd), account(cmd))
			})
		},
	}
	addAccountFlag(transfer, "sending holder")
	addPoolFlag(transfer)
	transfer.Flags().String("to", "", "receiving holder")
	transfer.Flags().String("amount", "", "shares to move")
	_ = transfer.MarkFlagRequired("to")

	donate := &cobra.Command{
		Use:   "donate",
		Short: "Give shares to the exchange account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := flagAmount(cmd, "amount")
			if err != nil {
				return err
			}
			drop, _ := cmd.Flags().GetBool("unregister")
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				if err := ex.DonateShares(account(cmd), poolID(cmd), amount, drop); err != nil {
					return nil, err
				}
				return map[string]interface{}{"pool_id": poolID(cmd), "account": account(cmd)}, nil
			})
		},
	}
	addAccountFlag(donate, "donating holder")
	addPoolFlag(donate)
	donate.Flags().String("amount", "", "shares to donate, empty donates the whole balance")
	donate.Flags().Bool("unregister", false, "drop the emptied share balance")

	cmd.AddCommand(show, register, unregister, transfer, donate)
	return cmd
}
