package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DiscoverConfig holds configuration for the pool discovery command.
type DiscoverConfig struct {
	RPCURL            string
	Factory           string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	PGDSN             string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	IncludeState      bool
	LogLevel          string
}

// LoadDiscover merges config file, environment variables, and flags into
// DiscoverConfig.
func LoadDiscover(cfgFile string, flags *pflag.FlagSet) (DiscoverConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("out", "./data/pools.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("include-state", true)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return DiscoverConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return DiscoverConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return DiscoverConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := DiscoverConfig{
		RPCURL:            v.GetString("rpc"),
		Factory:           v.GetString("factory"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		IncludeState:      v.GetBool("include-state"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
