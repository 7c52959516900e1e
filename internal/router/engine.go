package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
	"swapRouter/internal/pricemath"
	"swapRouter/internal/storage"
)

// PoolReader is the on-chain read capability the engine quotes against. All
// methods are asynchronous, retryable reads; "not found" is reported via
// dex.ErrPoolNotFound, distinct from transport failures.
type PoolReader interface {
	PoolByPair(ctx context.Context, tokenA, tokenB string, fee uint32) (model.Pool, error)
	PoolState(ctx context.Context, pool string) (model.PoolState, error)
	QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut string, fee uint32, amountIn *big.Int) (*big.Int, uint64, error)
	Token(ctx context.Context, address string) (model.Token, error)
}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	// FeeTiers are probed for direct pools, in hundredths of a basis point.
	FeeTiers []uint32
	// MaxHops bounds multi-hop search.
	MaxHops int
	// BaseTokens are routing intermediaries probed directly when no pool
	// store is available or it returns nothing.
	BaseTokens []string
}

// DefaultFeeTiers is the standard tier set probed for direct pools.
var DefaultFeeTiers = []uint32{100, 500, 3000, 10000}

// hopBaseGas is the fixed per-hop overhead added on top of the simulated
// pool-crossing gas, covering token transfers and router dispatch.
const hopBaseGas = 60000

// Engine produces normalized quotes: direct single-hop first, multi-hop
// path search as the fallback.
type Engine struct {
	reader PoolReader
	store  storage.PoolStore
	cfg    Config
	logger *zap.Logger
}

// NewEngine builds an Engine. store may be nil; the engine then discovers
// candidate pools by probing base tokens directly.
func NewEngine(reader PoolReader, store storage.PoolStore, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.FeeTiers) == 0 {
		cfg.FeeTiers = DefaultFeeTiers
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	return &Engine{reader: reader, store: store, cfg: cfg, logger: logger}
}

// QuoteResult pairs a display quote with the execution-grade route detail.
type QuoteResult struct {
	Quote  model.Quote
	Detail model.RouteDetail
}

// Quote produces a quote for swapping amountIn (decimal string) of tokenIn
// into tokenOut.
func (e *Engine) Quote(ctx context.Context, tokenIn, tokenOut model.Token, amountIn string) (*QuoteResult, error) {
	amount, err := ParseAmount(amountIn, tokenIn.Decimals)
	if err != nil {
		return nil, err
	}
	if tokenIn.Equal(tokenOut) {
		return nil, fmt.Errorf("%w: token in equals token out", ErrInvalidAmount)
	}

	if result, err := e.directQuote(ctx, tokenIn, tokenOut, amountIn, amount); err == nil {
		return result, nil
	} else if !errors.Is(err, ErrNoRouteFound) {
		e.logger.Debug("direct quote failed, trying multi-hop",
			zap.String("token_in", tokenIn.Symbol),
			zap.String("token_out", tokenOut.Symbol),
			zap.Error(err),
		)
	}

	return e.multiHopQuote(ctx, tokenIn, tokenOut, amountIn, amount)
}

// directQuote probes the fee tiers in parallel and keeps the tier with the
// best output. Best price wins, not lowest fee.
func (e *Engine) directQuote(ctx context.Context, tokenIn, tokenOut model.Token, amountInStr string, amountIn *big.Int) (*QuoteResult, error) {
	type probe struct {
		pool      model.Pool
		amountOut *big.Int
		gas       uint64
	}

	results := make(chan probe, len(e.cfg.FeeTiers))
	var wg sync.WaitGroup

	for _, fee := range e.cfg.FeeTiers {
		wg.Add(1)
		go func(fee uint32) {
			defer wg.Done()

			pool, err := e.reader.PoolByPair(ctx, tokenIn.Address, tokenOut.Address, fee)
			if err != nil {
				if !errors.Is(err, dex.ErrPoolNotFound) {
					e.logger.Debug("pool probe failed", zap.Uint32("fee", fee), zap.Error(err))
				}
				return
			}
			if !pool.HasLiquidity() {
				return
			}

			amountOut, gas, err := e.reader.QuoteExactInputSingle(ctx, tokenIn.Address, tokenOut.Address, fee, amountIn)
			if err != nil {
				e.logger.Debug("direct quote simulation failed", zap.Uint32("fee", fee), zap.Error(err))
				return
			}
			if amountOut == nil || amountOut.Sign() <= 0 {
				return
			}

			results <- probe{pool: pool, amountOut: amountOut, gas: gas}
		}(fee)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var best *probe
	for result := range results {
		result := result
		if best == nil || result.amountOut.Cmp(best.amountOut) > 0 {
			best = &result
		}
	}
	if best == nil {
		return nil, ErrNoRouteFound
	}

	return e.buildResult(ctx, tokenIn, tokenOut, amountInStr, amountIn, best.amountOut, best.gas+hopBaseGas, []model.Pool{best.pool})
}

// multiHopQuote fetches a candidate pool set, searches for the shortest
// path, then chains per-hop simulations.
func (e *Engine) multiHopQuote(ctx context.Context, tokenIn, tokenOut model.Token, amountInStr string, amountIn *big.Int) (*QuoteResult, error) {
	pools, err := e.candidatePools(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	SortPools(pools)
	graph := BuildGraph(pools)

	path, found := FindPath(graph, tokenIn.Address, tokenOut.Address, e.cfg.MaxHops)
	if !found || len(path) == 0 {
		diag := e.diagnose(graph, tokenIn, tokenOut)
		e.logger.Info("no route found",
			zap.String("token_in", tokenIn.Symbol),
			zap.String("token_out", tokenOut.Symbol),
			zap.Bool("token_in_connected", diag.TokenInConnected),
			zap.Bool("token_out_connected", diag.TokenOutConnected),
		)
		return nil, fmt.Errorf("%w: %s", ErrNoRouteFound, diag)
	}

	amountOut, totalGas, err := e.simulatePath(ctx, tokenIn.Address, path, amountIn)
	if err != nil {
		return nil, err
	}

	return e.buildResult(ctx, tokenIn, tokenOut, amountInStr, amountIn, amountOut, totalGas, path)
}

// simulatePath chains hop simulations: hop i's output feeds hop i+1. Any hop
// failure aborts the quote; partial routes are not execution plans.
func (e *Engine) simulatePath(ctx context.Context, tokenIn string, path []model.Pool, amountIn *big.Int) (*big.Int, uint64, error) {
	current := model.NormalizeAddress(tokenIn)
	amount := new(big.Int).Set(amountIn)
	var totalGas uint64

	for i, pool := range path {
		next := pool.Other(current)
		if next == "" {
			return nil, 0, fmt.Errorf("%w: hop %d pool %s does not contain %s", ErrHopSimulationFailed, i, pool.Address, current)
		}

		out, gas, err := e.reader.QuoteExactInputSingle(ctx, current, next, pool.Fee, amount)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: hop %d (%s): %v", ErrHopSimulationFailed, i, pool.Address, err)
		}
		if out == nil || out.Sign() <= 0 {
			return nil, 0, fmt.Errorf("%w: hop %d (%s): zero output", ErrHopSimulationFailed, i, pool.Address)
		}

		amount = out
		totalGas += gas + hopBaseGas
		current = model.NormalizeAddress(next)
	}

	return amount, totalGas, nil
}

// buildResult normalizes a simulated route into a Quote plus RouteDetail.
func (e *Engine) buildResult(ctx context.Context, tokenIn, tokenOut model.Token, amountInStr string, amountIn, amountOut *big.Int, gas uint64, path []model.Pool) (*QuoteResult, error) {
	route, fees := routeTokens(tokenIn.Address, path)

	amountInHuman := toHuman(amountIn, tokenIn.Decimals)
	amountOutHuman := toHuman(amountOut, tokenOut.Decimals)
	price := 0.0
	if amountInHuman > 0 {
		price = amountOutHuman / amountInHuman
	}

	impact, err := e.priceImpact(ctx, route, path, amountInHuman, amountOutHuman)
	if err != nil {
		// Impact is advisory; a quote without it still stands.
		e.logger.Debug("price impact unavailable", zap.Error(err))
		impact = 0
	}

	encodedPath, err := dex.EncodePath(route, fees)
	if err != nil {
		return nil, fmt.Errorf("encode path: %w", err)
	}

	quote := model.Quote{
		TokenIn:     model.NormalizeAddress(tokenIn.Address),
		TokenOut:    model.NormalizeAddress(tokenOut.Address),
		AmountIn:    amountInStr,
		AmountOut:   amountOut.String(),
		Price:       price,
		PriceImpact: impact,
		Fee:         path[0].Fee,
		GasEstimate: gas,
		Route:       route,
		PoolAddress: path[0].Address,
	}
	detail := model.RouteDetail{
		Pools:       path,
		Fees:        fees,
		EncodedPath: hexutil.Encode(encodedPath),
	}

	return &QuoteResult{Quote: quote, Detail: detail}, nil
}

// priceImpact compares the simulated output against the hypothetical output
// at the pools' current spot prices, clamped at zero: a favorable deviation
// reports zero impact, never negative.
func (e *Engine) priceImpact(ctx context.Context, route []string, path []model.Pool, amountInHuman, amountOutHuman float64) (float64, error) {
	if amountInHuman <= 0 {
		return 0, nil
	}

	spot := 1.0
	for i, pool := range path {
		hopSpot, err := e.hopSpotPrice(ctx, route[i], pool)
		if err != nil {
			return 0, err
		}
		spot *= hopSpot
	}

	expected := amountInHuman * spot
	if expected <= 0 {
		return 0, nil
	}

	impact := (expected - amountOutHuman) / expected * 100
	if impact < 0 {
		impact = 0
	}
	return impact, nil
}

// hopSpotPrice reads the pool's current spot price oriented in the trade
// direction, decimal-adjusted. Falls back to the tick-derived price when the
// sqrt encoding yields an invalid value.
func (e *Engine) hopSpotPrice(ctx context.Context, tokenFrom string, pool model.Pool) (float64, error) {
	state, err := e.reader.PoolState(ctx, pool.Address)
	if err != nil {
		return 0, fmt.Errorf("pool state %s: %w", pool.Address, err)
	}

	token0, err := e.reader.Token(ctx, pool.Token0)
	if err != nil {
		return 0, fmt.Errorf("token %s: %w", pool.Token0, err)
	}
	token1, err := e.reader.Token(ctx, pool.Token1)
	if err != nil {
		return 0, fmt.Errorf("token %s: %w", pool.Token1, err)
	}

	price, err := pricemath.SqrtX96ToPrice(state.SqrtPriceX96, token0.Decimals, token1.Decimals)
	if err != nil {
		price = pricemath.PriceFromTick(state.Tick, token0.Decimals, token1.Decimals)
	}
	if price <= 0 {
		return 0, fmt.Errorf("pool %s: no usable spot price", pool.Address)
	}

	if model.NormalizeAddress(tokenFrom) == model.NormalizeAddress(pool.Token0) {
		return price, nil
	}
	return 1 / price, nil
}

// candidatePools assembles the pool set for path search: the injected store
// first, direct base-token probing as the degraded fallback.
func (e *Engine) candidatePools(ctx context.Context, tokenIn, tokenOut model.Token) ([]model.Pool, error) {
	if e.store != nil {
		pools, err := e.loadStoredPools(ctx, tokenIn, tokenOut)
		if err != nil {
			e.logger.Warn("pool store unavailable, probing directly", zap.Error(err))
		} else if len(pools) > 0 {
			return pools, nil
		}
	}
	return e.probeBasePools(ctx, tokenIn, tokenOut)
}

func (e *Engine) loadStoredPools(ctx context.Context, tokenIn, tokenOut model.Token) ([]model.Pool, error) {
	seeds := []string{model.NormalizeAddress(tokenIn.Address), model.NormalizeAddress(tokenOut.Address)}
	pools, err := e.store.LoadPoolsForTokens(ctx, seeds)
	if err != nil {
		return nil, err
	}

	if e.cfg.MaxHops <= 2 {
		return pools, nil
	}

	// One expansion round covers paths up to MaxHops through intermediates
	// adjacent to either endpoint.
	intermediates := make(map[string]struct{})
	seedSet := map[string]struct{}{seeds[0]: {}, seeds[1]: {}}
	for _, pool := range pools {
		for _, token := range []string{model.NormalizeAddress(pool.Token0), model.NormalizeAddress(pool.Token1)} {
			if _, ok := seedSet[token]; !ok {
				intermediates[token] = struct{}{}
			}
		}
	}
	if len(intermediates) == 0 {
		return pools, nil
	}

	expand := make([]string, 0, len(intermediates))
	for token := range intermediates {
		expand = append(expand, token)
	}
	more, err := e.store.LoadPoolsForTokens(ctx, expand)
	if err != nil {
		return pools, nil
	}

	seen := make(map[string]struct{}, len(pools))
	for _, pool := range pools {
		seen[model.NormalizeAddress(pool.Address)] = struct{}{}
	}
	for _, pool := range more {
		if _, ok := seen[model.NormalizeAddress(pool.Address)]; !ok {
			pools = append(pools, pool)
		}
	}
	return pools, nil
}

// probeBasePools builds a reduced candidate set by probing each configured
// base token against both endpoints across the fee tiers.
func (e *Engine) probeBasePools(ctx context.Context, tokenIn, tokenOut model.Token) ([]model.Pool, error) {
	pools := make([]model.Pool, 0)
	seen := make(map[string]struct{})

	add := func(pool model.Pool) {
		key := model.NormalizeAddress(pool.Address)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		pools = append(pools, pool)
	}

	endpoints := []string{tokenIn.Address, tokenOut.Address}
	for _, base := range e.cfg.BaseTokens {
		for _, endpoint := range endpoints {
			if model.NormalizeAddress(base) == model.NormalizeAddress(endpoint) {
				continue
			}
			for _, fee := range e.cfg.FeeTiers {
				pool, err := e.reader.PoolByPair(ctx, endpoint, base, fee)
				if err != nil {
					if !errors.Is(err, dex.ErrPoolNotFound) {
						e.logger.Debug("base pool probe failed",
							zap.String("base", base),
							zap.Uint32("fee", fee),
							zap.Error(err),
						)
					}
					continue
				}
				add(pool)
			}
		}
	}

	return pools, nil
}

// RouteDiagnostics reports which endpoints have any liquid pool, surfaced
// alongside a no-route failure to make the miss actionable.
type RouteDiagnostics struct {
	TokenInConnected  bool
	TokenOutConnected bool
}

func (d RouteDiagnostics) String() string {
	switch {
	case !d.TokenInConnected && !d.TokenOutConnected:
		return "neither token has a liquid pool"
	case !d.TokenInConnected:
		return "input token has no liquid pool"
	case !d.TokenOutConnected:
		return "output token has no liquid pool"
	default:
		return "tokens are not connected within the hop limit"
	}
}

func (e *Engine) diagnose(graph *Graph, tokenIn, tokenOut model.Token) RouteDiagnostics {
	return RouteDiagnostics{
		TokenInConnected:  graph.HasToken(tokenIn.Address),
		TokenOutConnected: graph.HasToken(tokenOut.Address),
	}
}

// routeTokens derives the ordered token list and per-hop fees from a path.
func routeTokens(tokenIn string, path []model.Pool) ([]string, []uint32) {
	route := make([]string, 0, len(path)+1)
	fees := make([]uint32, 0, len(path))

	current := model.NormalizeAddress(tokenIn)
	route = append(route, current)
	for _, pool := range path {
		next := model.NormalizeAddress(pool.Other(current))
		route = append(route, next)
		fees = append(fees, pool.Fee)
		current = next
	}
	return route, fees
}

func toHuman(value *big.Int, decimals uint8) float64 {
	f := new(big.Float).SetInt(value)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}
