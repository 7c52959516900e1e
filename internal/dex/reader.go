package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapRouter/internal/chain"
	"swapRouter/internal/model"
)

// Reader reads pool and token state from the chain. All calls are static
// eth_calls; nothing here mutates state.
type Reader struct {
	chain      *chain.Client
	factory    common.Address
	quoter     common.Address
	chainID    uint64
	tokenCache *TokenMetaCache
	logger     *zap.Logger
}

// NewReader builds a Reader against the factory and quoter contracts.
func NewReader(chainClient *chain.Client, factory, quoter common.Address, chainID uint64, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		chain:      chainClient,
		factory:    factory,
		quoter:     quoter,
		chainID:    chainID,
		tokenCache: NewTokenMetaCache(),
		logger:     logger,
	}
}

// PoolAddress resolves the pool for a token pair and fee tier via the
// factory. Returns ErrPoolNotFound when the factory reports the zero
// address.
func (r *Reader) PoolAddress(ctx context.Context, tokenA, tokenB string, fee uint32) (string, error) {
	factoryABI, err := FactoryABI()
	if err != nil {
		return "", fmt.Errorf("parse factory abi: %w", err)
	}

	addrA, err := parseAddress(tokenA)
	if err != nil {
		return "", err
	}
	addrB, err := parseAddress(tokenB)
	if err != nil {
		return "", err
	}

	values, err := r.callMethod(ctx, r.factory, factoryABI, "getPool", addrA, addrB, big.NewInt(int64(fee)))
	if err != nil {
		return "", err
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return "", fmt.Errorf("get pool: %w", err)
	}
	if pool == (common.Address{}) {
		return "", ErrPoolNotFound
	}
	return pool.Hex(), nil
}

// PoolState reads slot0 and liquidity for a pool.
func (r *Reader) PoolState(ctx context.Context, pool string) (model.PoolState, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	addr, err := parseAddress(pool)
	if err != nil {
		return model.PoolState{}, err
	}

	values, err := r.callMethod(ctx, addr, poolABI, "slot0")
	if err != nil {
		return model.PoolState{}, err
	}
	if len(values) < 2 {
		return model.PoolState{}, fmt.Errorf("unexpected slot0 values: %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick: %w", err)
	}

	values, err = r.callMethod(ctx, addr, poolABI, "liquidity")
	if err != nil {
		return model.PoolState{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("liquidity: %w", err)
	}

	return model.PoolState{
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
		Liquidity:    liquidity,
	}, nil
}

// PoolByPair resolves a pool address for the pair and fee tier and reads its
// current state into a Pool record.
func (r *Reader) PoolByPair(ctx context.Context, tokenA, tokenB string, fee uint32) (model.Pool, error) {
	address, err := r.PoolAddress(ctx, tokenA, tokenB, fee)
	if err != nil {
		return model.Pool{}, err
	}

	state, err := r.PoolState(ctx, address)
	if err != nil {
		return model.Pool{}, err
	}

	token0, token1 := tokenA, tokenB
	if model.NormalizeAddress(token1) < model.NormalizeAddress(token0) {
		token0, token1 = token1, token0
	}

	return model.Pool{
		ChainID:      r.chainID,
		Address:      address,
		Token0:       token0,
		Token1:       token1,
		Fee:          fee,
		Liquidity:    state.Liquidity.String(),
		SqrtPriceX96: state.SqrtPriceX96.String(),
		Tick:         state.Tick,
	}, nil
}

// RefreshPoolState re-reads slot0/liquidity into an existing pool record.
func (r *Reader) RefreshPoolState(ctx context.Context, pool model.Pool) (model.Pool, error) {
	state, err := r.PoolState(ctx, pool.Address)
	if err != nil {
		return model.Pool{}, err
	}
	pool.Liquidity = state.Liquidity.String()
	pool.SqrtPriceX96 = state.SqrtPriceX96.String()
	pool.Tick = state.Tick
	return pool, nil
}

// QuoteExactInputSingle simulates a single-hop exact-input swap via the
// quoter contract and returns the output amount and the quoter's gas
// estimate.
func (r *Reader) QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut string, fee uint32, amountIn *big.Int) (*big.Int, uint64, error) {
	quoterABI, err := QuoterABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse quoter abi: %w", err)
	}

	in, err := parseAddress(tokenIn)
	if err != nil {
		return nil, 0, err
	}
	out, err := parseAddress(tokenOut)
	if err != nil {
		return nil, 0, err
	}

	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		AmountIn          *big.Int
		Fee               *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           in,
		TokenOut:          out,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	}

	values, err := r.callMethod(ctx, r.quoter, quoterABI, "quoteExactInputSingle", params)
	if err != nil {
		return nil, 0, err
	}
	if len(values) < 4 {
		return nil, 0, fmt.Errorf("unexpected quote values: %d", len(values))
	}

	amountOut, err := asBigInt(values[0])
	if err != nil {
		return nil, 0, fmt.Errorf("amount out: %w", err)
	}
	gasEstimate, err := asBigInt(values[3])
	if err != nil {
		return nil, 0, fmt.Errorf("gas estimate: %w", err)
	}

	return amountOut, gasEstimate.Uint64(), nil
}

// Token returns token metadata, served from the in-memory cache when warm.
func (r *Reader) Token(ctx context.Context, address string) (model.Token, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return model.Token{}, err
	}

	if meta, ok := r.tokenCache.Get(addr); ok {
		return meta, nil
	}

	meta, err := FetchTokenMeta(ctx, r.chain, addr, r.logger)
	if err != nil {
		return model.Token{}, err
	}
	meta.ChainID = r.chainID
	r.tokenCache.Set(addr, meta)
	return meta, nil
}

func (r *Reader) callMethod(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.chain.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := contractABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func parseAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}
