package model

// Quote is a normalized swap quote. Route is the ordered token address list
// from input to output; consecutive entries are connected by a pool with
// nonzero liquidity. PoolAddress is the primary (first-hop) pool.
type Quote struct {
	TokenIn     string   `json:"token_in"`
	TokenOut    string   `json:"token_out"`
	AmountIn    string   `json:"amount_in"`
	AmountOut   string   `json:"amount_out"`
	Price       float64  `json:"price"`
	PriceImpact float64  `json:"price_impact"`
	Fee         uint32   `json:"fee"`
	GasEstimate uint64   `json:"gas_estimate"`
	Route       []string `json:"route"`
	PoolAddress string   `json:"pool_address"`
}

// RouteDetail carries the execution-grade route data needed to build swap
// calldata without re-quoting. It may arrive after the quote itself; callers
// must tolerate its absence.
type RouteDetail struct {
	Pools       []Pool   `json:"pools"`
	Fees        []uint32 `json:"fees"`
	EncodedPath string   `json:"encoded_path"`
}
