package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	RPCURL        string
	Input         string
	Window        string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	Decimals      map[string]uint8
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("in", "./data/audit.jsonl")
	v.SetDefault("batch-size", 1000)
	v.SetDefault("log-level", "info")
	v.SetDefault("window", "5m")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if err := readInto(v, cfgFile, flags); err != nil {
		return AggregateConfig{}, err
	}

	cfg := AggregateConfig{
		RPCURL:        v.GetString("rpc"),
		Input:         v.GetString("in"),
		Window:        v.GetString("window"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		Decimals:      parseDecimals(getStringSlice(v, "decimals")),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

// parseDecimals reads token=decimals pairs; malformed pairs are skipped.
func parseDecimals(pairs []string) map[string]uint8 {
	out := make(map[string]uint8, len(pairs))
	for _, pair := range pairs {
		token, raw, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		d, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 8)
		if err != nil {
			continue
		}
		out[strings.TrimSpace(token)] = uint8(d)
	}
	return out
}
