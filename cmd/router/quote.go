package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapRouter/internal/chain"
	"swapRouter/internal/config"
	"swapRouter/internal/dex"
	"swapRouter/internal/model"
	"swapRouter/internal/quotecache"
	"swapRouter/internal/router"
	"swapRouter/internal/storage"
	"swapRouter/internal/storage/postgres"
)

// routerDeps are the shared wirings of the quote and swap commands.
type routerDeps struct {
	client *chain.Client
	reader *dex.Reader
	store  storage.PoolStore
	engine *router.Engine
	close  func()
}

func buildRouterDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (*routerDeps, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Factory) {
		return nil, fmt.Errorf("valid factory address is required")
	}
	if !common.IsHexAddress(cfg.Quoter) {
		return nil, fmt.Errorf("valid quoter address is required")
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		id, err := client.GetChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
		chainID = id.Uint64()
	}

	reader := dex.NewReader(client,
		common.HexToAddress(cfg.Factory),
		common.HexToAddress(cfg.Quoter),
		chainID, logger)

	var store storage.PoolStore
	closeStore := func() {}
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = pgStore
		closeStore = pgStore.Close
	} else if cfg.PoolsFile != "" {
		store = storage.NewJsonlStore(cfg.PoolsFile)
	}

	engine := router.NewEngine(reader, store, router.Config{
		FeeTiers:   cfg.FeeTiers,
		MaxHops:    cfg.MaxHops,
		BaseTokens: cfg.BaseTokens,
	}, logger)

	return &routerDeps{
		client: client,
		reader: reader,
		store:  store,
		engine: engine,
		close: func() {
			closeStore()
			client.Close()
		},
	}, nil
}

func resolveTokens(ctx context.Context, reader *dex.Reader, inAddr, outAddr string) (model.Token, model.Token, error) {
	if !common.IsHexAddress(inAddr) || !common.IsHexAddress(outAddr) {
		return model.Token{}, model.Token{}, fmt.Errorf("token arguments must be hex addresses")
	}
	tokenIn, err := reader.Token(ctx, inAddr)
	if err != nil {
		return model.Token{}, model.Token{}, fmt.Errorf("resolve token in: %w", err)
	}
	tokenOut, err := reader.Token(ctx, outAddr)
	if err != nil {
		return model.Token{}, model.Token{}, fmt.Errorf("resolve token out: %w", err)
	}
	return tokenIn, tokenOut, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildRouterDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	tokenIn, tokenOut, err := resolveTokens(ctx, deps.reader, args[0], args[1])
	if err != nil {
		return err
	}
	amount := args[2]

	watch, _ := cmd.Flags().GetDuration("watch")
	if watch <= 0 {
		result, err := deps.engine.Quote(ctx, tokenIn, tokenOut, amount)
		if err != nil {
			return err
		}
		return printQuote(result.Quote, &result.Detail)
	}

	return watchQuotes(ctx, cfg, deps, tokenIn, tokenOut, amount, watch, logger)
}

// watchQuotes re-quotes on an interval through the cache and fetcher, so
// repeated requests within the freshness window are served from cache and
// rapid parameter churn collapses into single fetches.
func watchQuotes(ctx context.Context, cfg config.Config, deps *routerDeps, tokenIn, tokenOut model.Token, amount string, interval time.Duration, logger *zap.Logger) error {
	cache := quotecache.NewCache(cfg.QuoteTTL)
	fetch := func(ctx context.Context, in, out model.Token, amountIn string) (*router.QuoteResult, error) {
		return deps.engine.Quote(ctx, in, out, amountIn)
	}
	onResult := func(_ string, entry quotecache.Entry, err error) {
		if err != nil {
			logger.Warn("quote refresh failed", zap.Error(err))
			return
		}
		if printErr := printQuote(entry.Quote, entry.Detail); printErr != nil {
			logger.Warn("print quote", zap.Error(printErr))
		}
	}

	fetcher := quotecache.NewFetcher(cache, fetch, onResult, cfg.Debounce, logger)
	defer fetcher.Close()

	if err := fetcher.Request(tokenIn, tokenOut, amount); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, freshness := fetcher.Lookup(tokenIn, tokenOut, amount); freshness == quotecache.Fresh {
				continue
			}
			if err := fetcher.Request(tokenIn, tokenOut, amount); err != nil {
				return err
			}
		}
	}
}

func printQuote(quote model.Quote, detail *model.RouteDetail) error {
	out := struct {
		model.Quote
		EncodedPath string `json:"encoded_path,omitempty"`
	}{Quote: quote}
	if detail != nil {
		out.EncodedPath = detail.EncodedPath
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
