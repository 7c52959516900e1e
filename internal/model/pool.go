package model

import "math/big"

// Pool represents a V3 pool record with the state fields routing needs.
// Token0 and Token1 are canonically ordered (token0 < token1 on normalized
// hex). Liquidity and SqrtPriceX96 are decimal strings so records survive
// JSON round trips without precision loss.
type Pool struct {
	ChainID        uint64 `json:"chain_id"`
	Address        string `json:"address"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	Fee            uint32 `json:"fee"`
	TickSpacing    int32  `json:"tick_spacing"`
	Liquidity      string `json:"liquidity,omitempty"`
	SqrtPriceX96   string `json:"sqrt_price_x96,omitempty"`
	Tick           int32  `json:"tick,omitempty"`
	FirstSeenBlock uint64 `json:"first_seen_block,omitempty"`
}

// HasLiquidity reports whether the pool carries nonzero depth. Pools with
// zero liquidity are excluded from routing.
func (p Pool) HasLiquidity() bool {
	if p.Liquidity == "" {
		return false
	}
	liq, ok := new(big.Int).SetString(p.Liquidity, 10)
	if !ok {
		return false
	}
	return liq.Sign() > 0
}

// Other returns the counterpart token of the pair, or "" if the address is
// not part of the pool.
func (p Pool) Other(token string) string {
	switch NormalizeAddress(token) {
	case NormalizeAddress(p.Token0):
		return p.Token1
	case NormalizeAddress(p.Token1):
		return p.Token0
	default:
		return ""
	}
}

// PoolState holds the mutable slot0/liquidity snapshot of a pool.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	Liquidity    *big.Int
}
