package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"swapCore/internal/model"
	"swapCore/internal/storage"
)

type cli struct {
	t   *testing.T
	dir string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, dir: t.TempDir()}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args,
		"--state", filepath.Join(c.dir, "exchange.json"),
		"--audit-out", filepath.Join(c.dir, "audit.jsonl"),
		"--metrics-out", filepath.Join(c.dir, "metrics.prom"),
		"--now", "1700000000",
		"--log-level", "error",
	))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) must(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, strings.Join(args, " "))
	return out
}

func e18(n int64) string {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)).String()
}

func TestCLISwapFlow(t *testing.T) {
	c := newCLI(t)
	c.must("init", "--owner", "owner", "--admin-fee-bps", "2000")
	_, err := c.run("init", "--owner", "owner")
	require.Error(t, err)

	var info model.PoolInfo
	require.NoError(t, json.Unmarshal([]byte(c.must("pool", "add-simple", "--account", "lp", "--token", "dai,eth", "--fee", "25")), &info))
	require.Equal(t, uint64(0), info.ID)
	require.Equal(t, []string{"dai", "eth"}, info.Tokens)

	c.must("register", "--account", "lp", "--token", "dai,eth")
	c.must("deposit", "--account", "lp", "--token", "dai", "--amount", e18(100))
	c.must("deposit", "--account", "lp", "--token", "eth", "--amount", e18(200))

	var added struct {
		Shares string `json:"shares"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.must("add-liquidity", "--account", "lp", "--pool", "0", "--amounts", e18(100)+","+e18(200))), &added))
	require.Equal(t, "1000000000000000000000000", added.Shares)

	var quote struct {
		AmountOut string `json:"amount_out"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.must("quote", "--pool", "0", "--token-in", "dai", "--token-out", "eth", "--amount", e18(10))), &quote))
	require.Equal(t, "18140486474198681518", quote.AmountOut)

	c.must("register", "--account", "alice")
	_, err = c.run("deposit", "--account", "alice", "--token", "dai", "--amount", e18(10))
	require.Error(t, err)
	c.must("register", "--account", "alice", "--token", "dai")
	c.must("deposit", "--account", "alice", "--token", "dai", "--amount", e18(10))
	actions := `[{"pool_id":0,"token_in":"dai","amount_in":` + e18(10) + `,"token_out":"eth","min_amount_out":0}]`
	var swapped struct {
		AmountOut string `json:"amount_out"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.must("swap", "--account", "alice", "--actions", actions)), &swapped))
	require.Equal(t, quote.AmountOut, swapped.AmountOut)

	// A rejected call leaves the snapshot untouched.
	before, err := os.ReadFile(filepath.Join(c.dir, "exchange.json"))
	require.NoError(t, err)
	_, err = c.run("swap", "--account", "alice", "--actions", `[{"pool_id":7,"token_in":"eth","amount_in":1,"token_out":"dai","min_amount_out":0}]`)
	require.Error(t, err)
	after, err := os.ReadFile(filepath.Join(c.dir, "exchange.json"))
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))

	var balances struct {
		Deposits []struct {
			Token  string   `json:"token"`
			Amount *big.Int `json:"amount"`
		} `json:"deposits"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.must("balances", "--account", "alice")), &balances))
	require.Len(t, balances.Deposits, 1)
	require.Equal(t, "eth", balances.Deposits[0].Token)
	require.Equal(t, swapped.AmountOut, balances.Deposits[0].Amount.String())

	var kinds []string
	require.NoError(t, storage.ReadAudit(filepath.Join(c.dir, "audit.jsonl"), 0, func(r model.AuditRecord) error {
		kinds = append(kinds, r.Kind)
		require.Equal(t, uint64(1700000000), r.Timestamp)
		return nil
	}))
	require.Equal(t, model.AuditPoolCreated, kinds[0])
	require.Equal(t, model.AuditSwap, kinds[len(kinds)-1])

	metrics, err := os.ReadFile(filepath.Join(c.dir, "metrics.prom"))
	require.NoError(t, err)
	require.Contains(t, string(metrics), "swapcore_exchange_rejections_total")
	require.Contains(t, string(metrics), "swapcore_exchange_pools 1")
}

func TestCLIWithdrawAndResolve(t *testing.T) {
	c := newCLI(t)
	c.must("init", "--owner", "owner")
	c.must("register", "--account", "bob", "--token", "usdc")
	c.must("deposit", "--account", "bob", "--token", "usdc", "--amount", "500")

	var p struct {
		ID     uint64   `json:"id"`
		Amount *big.Int `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.must("withdraw", "--account", "bob", "--token", "usdc")), &p))
	require.Equal(t, "500", p.Amount.String())

	var pending []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(c.must("pending")), &pending))
	require.Len(t, pending, 1)

	c.must("resolve", "--id", "0", "--failed")
	require.NoError(t, json.Unmarshal([]byte(c.must("pending")), &pending))
	require.Empty(t, pending)
	require.Contains(t, c.must("balances", "--account", "bob"), `"amount": 500`)
}

func TestCLIAdminAndStablePool(t *testing.T) {
	c := newCLI(t)
	c.must("init", "--owner", "owner")

	_, err := c.run("pool", "add-stable", "--account", "mallory", "--token", "usdc,usdt", "--decimals", "6,6", "--amp", "100")
	require.Error(t, err)
	_, err = c.run("pool", "add-stable", "--account", "owner", "--token", "usdc,usdt", "--amp", "100")
	require.Error(t, err)

	var info model.PoolInfo
	require.NoError(t, json.Unmarshal([]byte(c.must("pool", "add-stable", "--account", "owner", "--token", "usdc,usdt", "--decimals", "6,6", "--fee", "5", "--amp", "100")), &info))
	require.Equal(t, []uint32{6, 6}, info.Decimals)
	require.NotNil(t, info.Amp)
	require.Equal(t, uint64(100), info.Amp.Current)

	var meta model.Metadata
	require.NoError(t, json.Unmarshal([]byte(c.must("admin", "pause", "--account", "owner")), &meta))
	require.True(t, meta.Paused)
	_, err = c.run("register", "--account", "carol")
	require.Error(t, err)
	c.must("admin", "resume", "--account", "owner")
	c.must("register", "--account", "carol")

	require.NoError(t, json.Unmarshal([]byte(c.must("admin", "set-referral", "--account", "owner", "--referral", "ref", "--fee-bps", "1000")), &meta))
	require.Equal(t, uint32(1000), meta.Referrals["ref"])
	require.NoError(t, json.Unmarshal([]byte(c.must("admin", "freeze-pool", "--account", "owner", "--pool", "0")), &meta))
	require.Equal(t, []uint64{0}, meta.FrozenPools)
}

func TestParseActions(t *testing.T) {
	actions, err := parseActions(`[{"pool_id":1,"token_in":"a","token_out":"b","min_amount_out":5}]`)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Nil(t, actions[0].AmountIn)
	require.Equal(t, "5", actions[0].MinAmountOut.String())

	path := filepath.Join(t.TempDir(), "actions.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"pool_id":0,"token_in":"a","amount_in":7,"token_out":"b"}]`), 0o644))
	actions, err = parseActions("@" + path)
	require.NoError(t, err)
	require.Equal(t, "7", actions[0].AmountIn.String())

	_, err = parseActions("[]")
	require.Error(t, err)
	_, err = parseActions("not json")
	require.Error(t, err)
}

func TestParseAmounts(t *testing.T) {
	v, err := parseAmount("amount", " 42 ")
	require.NoError(t, err)
	require.Equal(t, "42", v.String())
	v, err = parseAmount("amount", "")
	require.NoError(t, err)
	require.Nil(t, v)
	_, err = parseAmount("amount", "-1")
	require.Error(t, err)

	vs, err := parseAmounts("amounts", []string{"1", "", "3"})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "0", "3"}, amountText(vs))
}

func TestReconcileLine(t *testing.T) {
	line := reconcileLine("0xtoken", big.NewInt(100), big.NewInt(90))
	require.True(t, line.Short)
	require.Equal(t, "-10", line.Surplus)
	require.False(t, reconcileLine("0xtoken", big.NewInt(5), big.NewInt(5)).Short)
}

func TestRedactDSN(t *testing.T) {
	require.Equal(t, "", redactDSN(""))
	require.Equal(t, "***", redactDSN("postgres://u:p@h/db"))
}
