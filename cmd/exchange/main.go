package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "exchange",
		Short:        "Multi-pool token exchange with constant-product and stable-swap pools",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("state", "./data/exchange.json", "exchange snapshot file")
	pf.String("snapshot-store", "file", "snapshot backend (file, postgres)")
	pf.String("exchange-id", "exchange", "share account that receives admin fees")
	pf.String("audit-out", "./data/audit.jsonl", "audit record JSONL path")
	pf.String("metrics-out", "", "optional Prometheus textfile written after each command")
	pf.String("pg-dsn", "", "Postgres DSN")
	pf.String("rpc", "", "EVM RPC URL for ERC20 token metadata")
	pf.String("now", "", "fixed block timestamp (unix seconds or RFC3339), default wall clock")
	pf.Int("max-retries", 5, "maximum RPC retry attempts")
	pf.Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(),
		newPoolCmd(),
		newRegisterCmd(),
		newUnregisterCmd(),
		newDepositCmd(),
		newWithdrawCmd(),
		newResolveCmd(),
		newClaimCmd(),
		newDonateCmd(),
		newBalancesCmd(),
		newPendingCmd(),
		newSwapCmd(),
		newInstantSwapCmd(),
		newQuoteCmd(),
		newAddLiquidityCmd(),
		newRemoveLiquidityCmd(),
		newRemoveLiquidityByTokensCmd(),
		newSharesCmd(),
		newAdminCmd(),
		newExportCmd(),
		newAggregateCmd(),
		newReconcileCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
