package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "swaprouter",
		Short:        "V3 swap quoting and routing",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote <token-in> <token-out> <amount>",
		Short: "Quote a swap",
		Args:  cobra.ExactArgs(3),
		RunE:  runQuote,
	}
	addRouterFlags(quoteCmd)
	quoteCmd.Flags().Duration("watch", 0, "re-quote on this interval until interrupted")

	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap <token-in> <token-out> <amount>",
		Short: "Quote and execute a swap",
		Args:  cobra.ExactArgs(3),
		RunE:  runSwap,
	}
	addRouterFlags(swapCmd)
	swapCmd.Flags().String("router", "", "swap router contract address")
	swapCmd.Flags().String("private-key", "", "hex private key of the sending account")
	swapCmd.Flags().Uint32("slippage-bps", 50, "slippage tolerance in basis points")
	swapCmd.Flags().Duration("deadline", 20*time.Minute, "swap deadline")
	swapCmd.Flags().Duration("poll-interval", 3*time.Second, "receipt poll interval")

	root.AddCommand(swapCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan factory events and persist discovered pools",
		RunE:  runDiscover,
	}

	discoverCmd.Flags().String("rpc", "", "RPC URL")
	discoverCmd.Flags().String("factory", "", "factory contract address")
	discoverCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	discoverCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	discoverCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	discoverCmd.Flags().String("out", "./data/pools.jsonl", "output JSONL path")
	discoverCmd.Flags().String("pg-dsn", "", "Postgres DSN (overrides JSONL output)")
	discoverCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	discoverCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	discoverCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	discoverCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	discoverCmd.Flags().Bool("include-state", true, "read slot0/liquidity for each discovered pool")
	discoverCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(discoverCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRouterFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().Uint64("chain-id", 0, "chain id, 0 means read from RPC")
	cmd.Flags().String("factory", "", "factory contract address")
	cmd.Flags().String("quoter", "", "quoter contract address")
	cmd.Flags().String("pools-file", "./data/pools.jsonl", "discovered pools JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the pool store")
	cmd.Flags().String("fee-tiers", "100,500,3000,10000", "fee tiers to probe (comma-separated)")
	cmd.Flags().Int("max-hops", 3, "maximum route hops")
	cmd.Flags().StringSlice("base-tokens", nil, "intermediary token addresses (comma-separated)")
	cmd.Flags().Duration("quote-ttl", 60*time.Second, "quote freshness window")
	cmd.Flags().Duration("debounce", 300*time.Millisecond, "quote request debounce")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
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
