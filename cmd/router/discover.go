package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapRouter/internal/chain"
	"swapRouter/internal/config"
	"swapRouter/internal/dex"
	"swapRouter/internal/discovery"
	"swapRouter/internal/storage"
	"swapRouter/internal/storage/postgres"
)

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDiscover(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Factory) {
		return fmt.Errorf("valid factory address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var store storage.PoolStore
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		store = storage.NewJsonlStore(cfg.Out)
	}

	var states discovery.PoolStateReader
	if cfg.IncludeState {
		chainIDBig, err := chainClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("read chain id: %w", err)
		}
		states = dex.NewReader(chainClient,
			common.HexToAddress(cfg.Factory),
			common.Address{},
			chainIDBig.Uint64(), logger)
	}

	scanner := discovery.NewScanner(discovery.ScanConfig{
		Factory:           common.HexToAddress(cfg.Factory),
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		IncludeState:      cfg.IncludeState,
	}, chainClient, store, states, logger)

	logger.Info("discovery start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("factory", cfg.Factory),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("include_state", cfg.IncludeState),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	return scanner.Run(ctx)
}
