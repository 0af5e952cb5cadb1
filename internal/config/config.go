package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	StateFile     string
	SnapshotStore string
	AuditOut      string
	MetricsOut    string
	Custody       string
	Owner         string
	ExchangeID    string
	AdminFeeBps   uint32
	InitShares    string
	PGDSN         string
	RPCURL        string
	Now           string
	Tokens        []string
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("state", "./data/exchange.json")
	v.SetDefault("snapshot-store", SnapshotFile)
	v.SetDefault("audit-out", "./data/audit.jsonl")
	v.SetDefault("exchange-id", "exchange")
	v.SetDefault("admin-fee-bps", uint32(2000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if err := readInto(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	cfg := Config{
		StateFile:     v.GetString("state"),
		SnapshotStore: v.GetString("snapshot-store"),
		AuditOut:      v.GetString("audit-out"),
		MetricsOut:    v.GetString("metrics-out"),
		Custody:       v.GetString("custody"),
		Owner:         v.GetString("owner"),
		ExchangeID:    v.GetString("exchange-id"),
		AdminFeeBps:   v.GetUint32("admin-fee-bps"),
		InitShares:    v.GetString("init-shares"),
		PGDSN:         v.GetString("pg-dsn"),
		RPCURL:        v.GetString("rpc"),
		Now:           v.GetString("now"),
		Tokens:        getStringSlice(v, "tokens"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}

	switch cfg.SnapshotStore {
	case SnapshotFile, SnapshotPostgres:
	default:
		return Config{}, fmt.Errorf("snapshot-store must be %q or %q", SnapshotFile, SnapshotPostgres)
	}

	return cfg, nil
}

// Snapshot backends.
const (
	SnapshotFile     = "file"
	SnapshotPostgres = "postgres"
)

// EnvPrefix prefixes every environment override, e.g. EXCHANGE_PG_DSN.
const EnvPrefix = "EXCHANGE"

// InitSharesAmount parses the configured bootstrap share amount. Empty means
// the default.
func (c Config) InitSharesAmount() (*big.Int, error) {
	if strings.TrimSpace(c.InitShares) == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(c.InitShares), 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("init-shares %q is not a positive integer", c.InitShares)
	}
	return v, nil
}

// Clock returns the fixed timestamp from --now, or nil to use wall time.
func (c Config) Clock() (func() uint64, error) {
	if strings.TrimSpace(c.Now) == "" {
		return nil, nil
	}
	ts, err := ParseTimestamp(c.Now)
	if err != nil {
		return nil, fmt.Errorf("parse now: %w", err)
	}
	return func() uint64 { return ts }, nil
}

func readInto(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
