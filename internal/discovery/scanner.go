package discovery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapRouter/internal/chain"
	"swapRouter/internal/dex"
	"swapRouter/internal/model"
	"swapRouter/internal/storage"
)

// ScanConfig holds runtime settings for pool discovery.
type ScanConfig struct {
	Factory           common.Address
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	IncludeState      bool
}

// PoolStateReader refreshes slot0/liquidity on a pool record. Optional; when
// absent discovered pools are stored without live state.
type PoolStateReader interface {
	RefreshPoolState(ctx context.Context, pool model.Pool) (model.Pool, error)
}

// Scanner streams PoolCreated events from the factory and persists pool
// records through the injected store.
type Scanner struct {
	cfg        ScanConfig
	chain      *chain.Client
	store      storage.PoolStore
	states     PoolStateReader
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewScanner builds a Scanner with its dependencies.
func NewScanner(cfg ScanConfig, chainClient *chain.Client, store storage.PoolStore, states PoolStateReader, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:        cfg,
		chain:      chainClient,
		store:      store,
		states:     states,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the discovery loop.
func (s *Scanner) Run(ctx context.Context) error {
	if s.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if s.store == nil {
		return fmt.Errorf("pool store is nil")
	}
	if s.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if s.cfg.Factory == (common.Address{}) {
		return fmt.Errorf("factory address is required")
	}

	factoryABI, err := dex.FactoryABI()
	if err != nil {
		return fmt.Errorf("parse factory abi: %w", err)
	}
	poolCreatedTopic := factoryABI.Events["PoolCreated"].ID

	chainID, err := s.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := s.cfg.FromBlock
	to := s.cfg.ToBlock
	if to == 0 {
		latest, err := s.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if s.checkpoint != nil {
		cp, ok, err := s.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			s.logger.Info("resume from checkpoint", zap.Uint64("from", from))
		}
	}

	if from > to {
		s.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.logger.Info("scan pool creations", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := s.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, poolCreatedTopic)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		pools := make([]model.Pool, 0, len(logs))
		for _, log := range logs {
			if s.isDuplicate(log) {
				continue
			}

			pool, err := decodePoolCreated(factoryABI, log, chainIDValue)
			if err != nil {
				s.logger.Warn("decode pool creation failed",
					zap.String("tx", log.TxHash.Hex()),
					zap.Uint64("block", log.BlockNumber),
					zap.Error(err),
				)
				continue
			}

			if s.cfg.IncludeState && s.states != nil {
				if refreshed, err := s.states.RefreshPoolState(ctx, pool); err == nil {
					pool = refreshed
				} else {
					s.logger.Debug("pool state fetch failed", zap.String("pool", pool.Address), zap.Error(err))
				}
			}

			pools = append(pools, pool)
		}

		if err := s.store.SavePools(ctx, pools); err != nil {
			return fmt.Errorf("store pools: %w", err)
		}

		if s.checkpoint != nil {
			if err := s.checkpoint.Save(blockRange.To); err != nil {
				return err
			}
		}

		s.logger.Info("batch complete", zap.Int("pools", len(pools)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

func (s *Scanner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topic0 common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{s.cfg.Factory}, []common.Hash{topic0})
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (s *Scanner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	return false
}

func decodePoolCreated(factoryABI abi.ABI, log types.Log, chainID uint64) (model.Pool, error) {
	event := factoryABI.Events["PoolCreated"]
	if len(log.Topics) != 4 {
		return model.Pool{}, fmt.Errorf("expected 4 topics, got %d", len(log.Topics))
	}

	token0 := common.BytesToAddress(log.Topics[1].Bytes())
	token1 := common.BytesToAddress(log.Topics[2].Bytes())
	fee := new(big.Int).SetBytes(log.Topics[3].Bytes())

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.Pool{}, fmt.Errorf("unpack PoolCreated: %w", err)
	}
	if len(values) != 2 {
		return model.Pool{}, fmt.Errorf("unexpected PoolCreated values: %d", len(values))
	}

	tickSpacingInt, ok := values[0].(*big.Int)
	if !ok {
		return model.Pool{}, fmt.Errorf("unsupported tick spacing type %T", values[0])
	}
	pool, ok := values[1].(common.Address)
	if !ok {
		return model.Pool{}, fmt.Errorf("unsupported pool address type %T", values[1])
	}

	return model.Pool{
		ChainID:        chainID,
		Address:        pool.Hex(),
		Token0:         token0.Hex(),
		Token1:         token1.Hex(),
		Fee:            uint32(fee.Uint64()),
		TickSpacing:    int32(tickSpacingInt.Int64()),
		FirstSeenBlock: log.BlockNumber,
	}, nil
}
