package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"swapCore/internal/exchange"
)

const actionsUsage = `swap actions as a JSON array or @file, e.g. [{"pool_id":0,"token_in":"dai","amount_in":1000,"token_out":"eth","min_amount_out":0}]`

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Run swap actions against an account's deposits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("actions")
			referral, _ := cmd.Flags().GetString("referral")
			actions, err := parseActions(raw)
			if err != nil {
				return err
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				out, err := ex.Swap(account(cmd), actions, referral)
				if err != nil {
					return nil, err
				}
				return map[string]string{"amount_out": out.String()}, nil
			})
		},
	}
	addAccountFlag(cmd, "trading account")
	cmd.Flags().String("actions", "", actionsUsage)
	cmd.Flags().String("referral", "", "referral account credited with part of the admin fee")
	_ = cmd.MarkFlagRequired("actions")
	return cmd
}

func newInstantSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instant-swap",
		Short: "Swap an inbound transfer and send every resulting balance back out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("actions")
			referral, _ := cmd.Flags().GetString("referral")
			tokenIn, _ := cmd.Flags().GetString("token-in")
			amount, err := requiredAmount(cmd, "amount")
			if err != nil {
				return err
			}
			actions, err := parseActions(raw)
			if err != nil {
				return err
			}
			return mutate(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				return ex.InstantSwap(account(cmd), tokenIn, amount, actions, referral)
			})
		},
	}
	addAccountFlag(cmd, "sender of the inbound transfer")
	cmd.Flags().String("token-in", "", "token received")
	cmd.Flags().String("amount", "", "amount received in base units")
	cmd.Flags().String("actions", "", actionsUsage)
	cmd.Flags().String("referral", "", "referral account credited with part of the admin fee")
	_ = cmd.MarkFlagRequired("token-in")
	_ = cmd.MarkFlagRequired("actions")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a single swap, or every hop of --actions, without changing state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("actions")
			amount, err := flagAmount(cmd, "amount")
			if err != nil {
				return err
			}
			if raw != "" {
				actions, err := parseActions(raw)
				if err != nil {
					return err
				}
				return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
					outs, err := ex.PredictSwapActions(actions, amount)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{"amounts_out": amountText(outs)}, nil
				})
			}

			if !cmd.Flags().Changed("pool") || amount == nil {
				return fmt.Errorf("--pool and --amount are required without --actions")
			}
			tokenIn, _ := cmd.Flags().GetString("token-in")
			tokenOut, _ := cmd.Flags().GetString("token-out")
			return query(cmd, func(ex *exchange.Exchange) (interface{}, error) {
				out, err := ex.GetReturn(poolID(cmd), tokenIn, amount, tokenOut)
				if err != nil {
					return nil, err
				}
				return map[string]string{"amount_out": out.String()}, nil
			})
		},
	}
	cmd.Flags().Uint64("pool", 0, "pool id")
	cmd.Flags().String("token-in", "", "token sold")
	cmd.Flags().String("token-out", "", "token bought")
	cmd.Flags().String("amount", "", "amount sold in base units; seeds the first action when it has none")
	cmd.Flags().String("actions", "", actionsUsage)
	return cmd
}
