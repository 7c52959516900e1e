package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
)

var sqrtPriceOne = new(big.Int).Lsh(big.NewInt(1), 96)

type fakeReader struct {
	mu         sync.Mutex
	pools      map[string]model.Pool     // "token0|token1|fee", normalized, sorted pair
	quotes     map[string]*big.Int       // "in|out|fee" -> amountOut
	quoteGas   map[string]uint64         // "in|out|fee" -> gas
	quoteErrs  map[string]error          // "in|out|fee" -> forced failure
	states     map[string]model.PoolState // pool address -> state
	tokens     map[string]model.Token
	quoteCalls int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		pools:     make(map[string]model.Pool),
		quotes:    make(map[string]*big.Int),
		quoteGas:  make(map[string]uint64),
		quoteErrs: make(map[string]error),
		states:    make(map[string]model.PoolState),
		tokens:    make(map[string]model.Token),
	}
}

func pairKey(tokenA, tokenB string, fee uint32) string {
	a, b := model.NormalizeAddress(tokenA), model.NormalizeAddress(tokenB)
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s|%d", a, b, fee)
}

func quoteKey(tokenIn, tokenOut string, fee uint32) string {
	return fmt.Sprintf("%s|%s|%d", model.NormalizeAddress(tokenIn), model.NormalizeAddress(tokenOut), fee)
}

func (f *fakeReader) addPool(address, token0, token1 string, fee uint32) {
	pool := testPool(address, token0, token1, fee, "1000000")
	f.pools[pairKey(token0, token1, fee)] = pool
	f.states[model.NormalizeAddress(address)] = model.PoolState{
		SqrtPriceX96: sqrtPriceOne,
		Liquidity:    big.NewInt(1000000),
	}
}

func (f *fakeReader) setQuote(tokenIn, tokenOut string, fee uint32, amountOut *big.Int, gas uint64) {
	key := quoteKey(tokenIn, tokenOut, fee)
	f.quotes[key] = amountOut
	f.quoteGas[key] = gas
}

func (f *fakeReader) addToken(address string, decimals uint8) {
	f.tokens[model.NormalizeAddress(address)] = model.Token{
		ChainID:  56,
		Address:  model.NormalizeAddress(address),
		Decimals: decimals,
	}
}

func (f *fakeReader) PoolByPair(_ context.Context, tokenA, tokenB string, fee uint32) (model.Pool, error) {
	pool, ok := f.pools[pairKey(tokenA, tokenB, fee)]
	if !ok {
		return model.Pool{}, dex.ErrPoolNotFound
	}
	return pool, nil
}

func (f *fakeReader) PoolState(_ context.Context, pool string) (model.PoolState, error) {
	state, ok := f.states[model.NormalizeAddress(pool)]
	if !ok {
		return model.PoolState{}, fmt.Errorf("no state for %s", pool)
	}
	return state, nil
}

func (f *fakeReader) QuoteExactInputSingle(_ context.Context, tokenIn, tokenOut string, fee uint32, _ *big.Int) (*big.Int, uint64, error) {
	f.mu.Lock()
	f.quoteCalls++
	f.mu.Unlock()

	key := quoteKey(tokenIn, tokenOut, fee)
	if err, ok := f.quoteErrs[key]; ok {
		return nil, 0, err
	}
	out, ok := f.quotes[key]
	if !ok {
		return nil, 0, fmt.Errorf("execution reverted")
	}
	return new(big.Int).Set(out), f.quoteGas[key], nil
}

func (f *fakeReader) Token(_ context.Context, address string) (model.Token, error) {
	token, ok := f.tokens[model.NormalizeAddress(address)]
	if !ok {
		return model.Token{}, fmt.Errorf("unknown token %s", address)
	}
	return token, nil
}

func (f *fakeReader) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quoteCalls
}

type fakeStore struct {
	pools []model.Pool
	err   error
}

func (s *fakeStore) SavePools(context.Context, []model.Pool) error { return nil }

func (s *fakeStore) LoadPools(context.Context) ([]model.Pool, error) {
	return s.pools, s.err
}

func (s *fakeStore) LoadPoolsForTokens(_ context.Context, tokens []string) ([]model.Pool, error) {
	if s.err != nil {
		return nil, s.err
	}
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[model.NormalizeAddress(token)] = struct{}{}
	}
	var out []model.Pool
	for _, pool := range s.pools {
		_, ok0 := set[model.NormalizeAddress(pool.Token0)]
		_, ok1 := set[model.NormalizeAddress(pool.Token1)]
		if ok0 || ok1 {
			out = append(out, pool)
		}
	}
	return out, nil
}

func testToken(address string) model.Token {
	return model.Token{ChainID: 56, Address: address, Decimals: 18}
}

func wei(human int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(human), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestQuoteDirectBestFeeTierWins(t *testing.T) {
	reader := newFakeReader()
	reader.addToken(tokenA, 18)
	reader.addToken(tokenB, 18)
	reader.addPool("0x1111111111111111111111111111111111111111", tokenA, tokenB, 500)
	reader.addPool("0x2222222222222222222222222222222222222222", tokenA, tokenB, 3000)
	// The higher-fee pool is deeper here and yields more output. It must win
	// on output, not lose on fee.
	reader.setQuote(tokenA, tokenB, 500, wei(95), 80000)
	reader.setQuote(tokenA, tokenB, 3000, wei(98), 80000)

	engine := NewEngine(reader, nil, Config{}, nil)
	result, err := engine.Quote(context.Background(), testToken(tokenA), testToken(tokenB), "100")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if result.Quote.Fee != 3000 {
		t.Errorf("Fee = %d, want the 3000 tier with the higher output", result.Quote.Fee)
	}
	if result.Quote.AmountOut != wei(98).String() {
		t.Errorf("AmountOut = %s, want %s", result.Quote.AmountOut, wei(98))
	}
	if result.Quote.PoolAddress != "0x2222222222222222222222222222222222222222" {
		t.Errorf("PoolAddress = %s, want the winning pool", result.Quote.PoolAddress)
	}
	if len(result.Quote.Route) != 2 {
		t.Errorf("Route = %v, want the two endpoint tokens", result.Quote.Route)
	}
}

func TestQuoteDirectMixedDecimals(t *testing.T) {
	// 6-decimal stable in, 18-decimal native out.
	reader := newFakeReader()
	reader.addToken(tokenA, 6)
	reader.addToken(tokenB, 18)
	reader.addPool("0x1111111111111111111111111111111111111111", tokenA, tokenB, 3000)
	reader.setQuote(tokenA, tokenB, 3000, wei(540), 90000)

	engine := NewEngine(reader, nil, Config{FeeTiers: []uint32{3000}}, nil)
	tokenIn := model.Token{ChainID: 56, Address: tokenA, Decimals: 6}
	result, err := engine.Quote(context.Background(), tokenIn, testToken(tokenB), "100")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if result.Quote.Fee != 3000 {
		t.Errorf("Fee = %d, want 3000", result.Quote.Fee)
	}
	if result.Quote.AmountOut != wei(540).String() {
		t.Errorf("AmountOut = %s, want %s", result.Quote.AmountOut, wei(540))
	}
	if result.Quote.PriceImpact < 0 {
		t.Errorf("PriceImpact = %f, must not be negative", result.Quote.PriceImpact)
	}
	if result.Quote.Price != 5.4 {
		t.Errorf("Price = %f, want 5.4 out per in", result.Quote.Price)
	}
}

func TestQuoteInvalidAmountBeforeNetwork(t *testing.T) {
	reader := newFakeReader()
	engine := NewEngine(reader, nil, Config{}, nil)

	for _, amount := range []string{"", "0", "-5", "abc"} {
		if _, err := engine.Quote(context.Background(), testToken(tokenA), testToken(tokenB), amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Quote(%q) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
	if reader.calls() != 0 {
		t.Errorf("reader saw %d quote calls for invalid input, want 0", reader.calls())
	}
}

func TestQuoteMultiHopChainsAmounts(t *testing.T) {
	reader := newFakeReader()
	reader.addToken(tokenA, 18)
	reader.addToken(tokenB, 18)
	reader.addToken(tokenC, 18)
	reader.addPool("0x1111111111111111111111111111111111111111", tokenA, tokenC, 500)
	reader.addPool("0x2222222222222222222222222222222222222222", tokenB, tokenC, 3000)
	reader.setQuote(tokenA, tokenC, 500, wei(200), 80000)
	reader.setQuote(tokenC, tokenB, 3000, wei(190), 90000)

	store := &fakeStore{pools: []model.Pool{
		testPool("0x1111111111111111111111111111111111111111", tokenA, tokenC, 500, "1000000"),
		testPool("0x2222222222222222222222222222222222222222", tokenB, tokenC, 3000, "1000000"),
	}}

	engine := NewEngine(reader, store, Config{}, nil)
	result, err := engine.Quote(context.Background(), testToken(tokenA), testToken(tokenB), "100")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if result.Quote.AmountOut != wei(190).String() {
		t.Errorf("AmountOut = %s, want the final hop output %s", result.Quote.AmountOut, wei(190))
	}
	if result.Quote.GasEstimate != 170000+2*60000 {
		t.Errorf("GasEstimate = %d, want summed hop gas plus per-hop overhead", result.Quote.GasEstimate)
	}
	wantRoute := []string{tokenA, tokenC, tokenB}
	if len(result.Quote.Route) != len(wantRoute) {
		t.Fatalf("Route = %v, want %v", result.Quote.Route, wantRoute)
	}
	for i := range wantRoute {
		if result.Quote.Route[i] != wantRoute[i] {
			t.Fatalf("Route = %v, want %v", result.Quote.Route, wantRoute)
		}
	}
	if len(result.Detail.Pools) != 2 || len(result.Detail.Fees) != 2 {
		t.Errorf("Detail has %d pools / %d fees, want 2 / 2", len(result.Detail.Pools), len(result.Detail.Fees))
	}
	if result.Detail.EncodedPath == "" {
		t.Error("Detail.EncodedPath is empty")
	}
}

func TestQuoteHopFailureAbortsRoute(t *testing.T) {
	reader := newFakeReader()
	reader.addToken(tokenA, 18)
	reader.addToken(tokenB, 18)
	reader.addToken(tokenC, 18)
	reader.addPool("0x1111111111111111111111111111111111111111", tokenA, tokenC, 500)
	reader.addPool("0x2222222222222222222222222222222222222222", tokenB, tokenC, 3000)
	reader.setQuote(tokenA, tokenC, 500, wei(200), 80000)
	reader.quoteErrs[quoteKey(tokenC, tokenB, 3000)] = fmt.Errorf("execution reverted")

	store := &fakeStore{pools: []model.Pool{
		testPool("0x1111111111111111111111111111111111111111", tokenA, tokenC, 500, "1000000"),
		testPool("0x2222222222222222222222222222222222222222", tokenB, tokenC, 3000, "1000000"),
	}}

	engine := NewEngine(reader, store, Config{}, nil)
	_, err := engine.Quote(context.Background(), testToken(tokenA), testToken(tokenB), "100")
	if !errors.Is(err, ErrHopSimulationFailed) {
		t.Errorf("err = %v, want ErrHopSimulationFailed", err)
	}
}

func TestQuoteNoRouteFound(t *testing.T) {
	reader := newFakeReader()
	reader.addToken(tokenA, 18)
	reader.addToken(tokenB, 18)

	store := &fakeStore{}
	engine := NewEngine(reader, store, Config{}, nil)
	_, err := engine.Quote(context.Background(), testToken(tokenA), testToken(tokenB), "100")
	if !errors.Is(err, ErrNoRouteFound) {
		t.Errorf("err = %v, want ErrNoRouteFound", err)
	}
}

func TestQuotePriceImpact(t *testing.T) {
	// Pool spot price is 1.0 (sqrtPriceX96 = 2^96, equal decimals), so 100
	// in at spot would yield 100 out.
	tests := []struct {
		name       string
		amountOut  *big.Int
		wantImpact float64
	}{
		{"unfavorable", wei(97), 3.0},
		{"at spot", wei(100), 0},
		{"favorable clamps to zero", wei(103), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := newFakeReader()
			reader.addToken(tokenA, 18)
			reader.addToken(tokenB, 18)
			reader.addPool("0x1111111111111111111111111111111111111111", tokenA, tokenB, 3000)
			reader.setQuote(tokenA, tokenB, 3000, tt.amountOut, 80000)

			engine := NewEngine(reader, nil, Config{FeeTiers: []uint32{3000}}, nil)
			result, err := engine.Quote(context.Background(), testToken(tokenA), testToken(tokenB), "100")
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}

			got := result.Quote.PriceImpact
			if got < 0 {
				t.Fatalf("PriceImpact = %f, must never be negative", got)
			}
			if diff := got - tt.wantImpact; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("PriceImpact = %f, want %f", got, tt.wantImpact)
			}
		})
	}
}

func TestQuoteSameTokenRejected(t *testing.T) {
	reader := newFakeReader()
	engine := NewEngine(reader, nil, Config{}, nil)
	if _, err := engine.Quote(context.Background(), testToken(tokenA), testToken(tokenA), "100"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount for identical tokens", err)
	}
}

func TestQuoteFallsBackToBaseTokenProbing(t *testing.T) {
	reader := newFakeReader()
	reader.addToken(tokenA, 18)
	reader.addToken(tokenB, 18)
	reader.addToken(tokenC, 18)
	reader.addPool("0x1111111111111111111111111111111111111111", tokenA, tokenC, 500)
	reader.addPool("0x2222222222222222222222222222222222222222", tokenB, tokenC, 500)
	reader.setQuote(tokenA, tokenC, 500, wei(200), 80000)
	reader.setQuote(tokenC, tokenB, 500, wei(190), 90000)

	store := &fakeStore{err: fmt.Errorf("connection refused")}
	engine := NewEngine(reader, store, Config{
		FeeTiers:   []uint32{500},
		BaseTokens: []string{tokenC},
	}, nil)

	result, err := engine.Quote(context.Background(), testToken(tokenA), testToken(tokenB), "100")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if result.Quote.AmountOut != wei(190).String() {
		t.Errorf("AmountOut = %s, want %s via the base token", result.Quote.AmountOut, wei(190))
	}
}
