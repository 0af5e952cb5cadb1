package main

import (
	"github.com/spf13/cobra"

	"swapCore/internal/exchange"
)

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an account and whitelist tokens for it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, _ := cmd.Flags().GetStringSlice("token")
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				if err := ex.RegisterAccount(account(cmd), tokens...); err != nil {
					return nil, err
				}
				return ex.Deposits(account(cmd)), nil
			})
		},
	}
	addAccountFlag(cmd, "account to register")
	cmd.Flags().StringSlice("token", nil, "tokens to whitelist (comma-separated)")
	return cmd
}

func newUnregisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unregister",
		Short: "Close an account that holds nothing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				return map[string]string{"unregistered": account(cmd)}, ex.UnregisterAccount(account(cmd))
			})
		},
	}
	addAccountFlag(cmd, "account to close")
	return cmd
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Credit an inbound token transfer to an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, _ := cmd.Flags().GetString("token")
			amount, err := requiredAmount(cmd, "amount")
			if err != nil {
				return err
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				if err := ex.Deposit(account(cmd), token, amount); err != nil {
					return nil, err
				}
				return ex.Deposits(account(cmd)), nil
			})
		},
	}
	addAccountFlag(cmd, "receiving account")
	cmd.Flags().String("token", "", "token id")
	cmd.Flags().String("amount", "", "amount in base units")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Debit a balance and open a pending outward transfer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, _ := cmd.Flags().GetString("token")
			amount, err := flagAmount(cmd, "amount")
			if err != nil {
				return err
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				return ex.Withdraw(account(cmd), token, amount)
			})
		},
	}
	addAccountFlag(cmd, "withdrawing account")
	cmd.Flags().String("token", "", "token id")
	cmd.Flags().String("amount", "", "amount in base units, empty withdraws the whole balance")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Record the outcome of a pending transfer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetUint64("id")
			failed, _ := cmd.Flags().GetBool("failed")
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				p, err := ex.PendingTransfer(id)
				if err != nil {
					return nil, err
				}
				if err := ex.ResolveTransfer(id, !failed); err != nil {
					return nil, err
				}
				return map[string]interface{}{"transfer": p, "succeeded": !failed}, nil
			})
		},
	}
	cmd.Flags().Uint64("id", 0, "pending transfer id")
	cmd.Flags().Bool("failed", false, "the transfer bounced and must be refunded")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Move a lost-and-found balance back into the account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, _ := cmd.Flags().GetString("token")
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				amount, err := ex.ClaimLostFound(account(cmd), token)
				if err != nil {
					return nil, err
				}
				return map[string]string{"token": token, "amount": amount.String()}, nil
			})
		},
	}
	addAccountFlag(cmd, "claiming account")
	cmd.Flags().String("token", "", "token id")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newDonateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "donate",
		Short: "Give deposited tokens to the owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, _ := cmd.Flags().GetString("token")
			amount, err := flagAmount(cmd, "amount")
			if err != nil {
				return err
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				if err := ex.DonateToken(account(cmd), token, amount); err != nil {
					return nil, err
				}
				return ex.Deposits(account(cmd)), nil
			})
		},
	}
	addAccountFlag(cmd, "donating account")
	cmd.Flags().String("token", "", "token id")
	cmd.Flags().String("amount", "", "amount in base units, empty donates the whole balance")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newBalancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show an account's deposits and lost-and-found",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				return map[string]interface{}{
					"account":    account(cmd),
					"deposits":   ex.Deposits(account(cmd)),
					"lost_found": ex.LostFound(account(cmd)),
				}, nil
			})
		},
	}
	addAccountFlag(cmd, "account to show")
	return cmd
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List unresolved outward transfers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				return ex.Pending(), nil
			})
		},
	}
}
