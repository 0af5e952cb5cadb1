package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"swapCore/internal/router"
)

// parseAmount reads a base-10 token amount. An empty value yields nil.
func parseAmount(name, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: %q is not a non-negative integer", name, value)
	}
	return v, nil
}

func parseAmounts(name string, values []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for i, raw := range values {
		v, err := parseAmount(fmt.Sprintf("%s[%d]", name, i), raw)
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = new(big.Int)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseActions decodes a JSON array of swap actions, inline or from
// "@path". Amounts are bare JSON integers.
func parseActions(input string) ([]router.SwapAction, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("actions are required")
	}
	data := []byte(input)
	if strings.HasPrefix(input, "@") {
		raw, err := os.ReadFile(strings.TrimPrefix(input, "@"))
		if err != nil {
			return nil, fmt.Errorf("read actions: %w", err)
		}
		data = raw
	}
	var actions []router.SwapAction
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("parse actions: %w", err)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("actions are required")
	}
	return actions, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func flagAmount(cmd *cobra.Command, name string) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	return parseAmount(name, raw)
}

func flagAmounts(cmd *cobra.Command, name string) ([]*big.Int, error) {
	raw, _ := cmd.Flags().GetStringSlice(name)
	return parseAmounts(name, raw)
}

func requiredAmount(cmd *cobra.Command, name string) (*big.Int, error) {
	v, err := flagAmount(cmd, name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("--%s is required", name)
	}
	return v, nil
}

func addAccountFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().String("account", "", usage)
	_ = cmd.MarkFlagRequired("account")
}

func addPoolFlag(cmd *cobra.Command) {
	cmd.Flags().Uint64("pool", 0, "pool id")
	_ = cmd.MarkFlagRequired("pool")
}

func account(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("account")
	return v
}

func poolID(cmd *cobra.Command) uint64 {
	v, _ := cmd.Flags().GetUint64("pool")
	return v
}
