package router

import (
	"sort"

	"swapRouter/internal/model"
)

// Edge is one traversable pool from a token to its pair counterpart.
// Parallel edges between the same pair (different fee tiers) are kept
// distinct.
type Edge struct {
	Neighbor string
	Pool     model.Pool
}

// Graph is an adjacency view over a pool set, keyed by normalized token
// address. It is ephemeral: built per path-finding invocation from whatever
// pool set is current.
type Graph struct {
	edges map[string][]Edge
}

// BuildGraph constructs a bidirectional multigraph from the pool list.
// Pools with zero liquidity are dropped before insertion. Edge order follows
// input order, so callers wanting deterministic traversal sort the pool list
// first (SortPools).
func BuildGraph(pools []model.Pool) *Graph {
	g := &Graph{edges: make(map[string][]Edge)}
	for _, pool := range pools {
		if !pool.HasLiquidity() {
			continue
		}
		token0 := model.NormalizeAddress(pool.Token0)
		token1 := model.NormalizeAddress(pool.Token1)
		g.edges[token0] = append(g.edges[token0], Edge{Neighbor: token1, Pool: pool})
		g.edges[token1] = append(g.edges[token1], Edge{Neighbor: token0, Pool: pool})
	}
	return g
}

// Edges returns the outgoing edges of a token.
func (g *Graph) Edges(token string) []Edge {
	return g.edges[model.NormalizeAddress(token)]
}

// HasToken reports whether the token participates in any liquid pool.
func (g *Graph) HasToken(token string) bool {
	return len(g.edges[model.NormalizeAddress(token)]) > 0
}

// TokenCount returns the number of tokens with at least one edge.
func (g *Graph) TokenCount() int {
	return len(g.edges)
}

// SortPools orders pools by normalized address so graph construction, and
// therefore path-finding tie-breaks, are deterministic regardless of source
// ordering.
func SortPools(pools []model.Pool) {
	sort.Slice(pools, func(i, j int) bool {
		return model.NormalizeAddress(pools[i].Address) < model.NormalizeAddress(pools[j].Address)
	})
}
