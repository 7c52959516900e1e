package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values for quoting and swapping, loaded from
// flags, env, or config file.
type Config struct {
	RPCURL       string
	ChainID      uint64
	Factory      string
	Quoter       string
	Router       string
	PoolsFile    string
	PGDSN        string
	FeeTiers     []uint32
	MaxHops      int
	BaseTokens   []string
	QuoteTTL     time.Duration
	Debounce     time.Duration
	SlippageBps  uint32
	Deadline     time.Duration
	PollInterval time.Duration
	PrivateKey   string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("fee-tiers", "100,500,3000,10000")
	v.SetDefault("max-hops", 3)
	v.SetDefault("quote-ttl", 60*time.Second)
	v.SetDefault("debounce", 300*time.Millisecond)
	v.SetDefault("slippage-bps", 50)
	v.SetDefault("deadline", 20*time.Minute)
	v.SetDefault("poll-interval", 3*time.Second)
	v.SetDefault("pools-file", "./data/pools.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	feeTiers, err := parseFeeTiers(getStringSlice(v, "fee-tiers"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:       v.GetString("rpc"),
		ChainID:      v.GetUint64("chain-id"),
		Factory:      v.GetString("factory"),
		Quoter:       v.GetString("quoter"),
		Router:       v.GetString("router"),
		PoolsFile:    v.GetString("pools-file"),
		PGDSN:        v.GetString("pg-dsn"),
		FeeTiers:     feeTiers,
		MaxHops:      v.GetInt("max-hops"),
		BaseTokens:   getStringSlice(v, "base-tokens"),
		QuoteTTL:     v.GetDuration("quote-ttl"),
		Debounce:     v.GetDuration("debounce"),
		SlippageBps:  v.GetUint32("slippage-bps"),
		Deadline:     v.GetDuration("deadline"),
		PollInterval: v.GetDuration("poll-interval"),
		PrivateKey:   v.GetString("private-key"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

func parseFeeTiers(items []string) ([]uint32, error) {
	out := make([]uint32, 0, len(items))
	for _, item := range items {
		tier, err := strconv.ParseUint(item, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid fee tier %q: %w", item, err)
		}
		out = append(out, uint32(tier))
	}
	return out, nil
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
