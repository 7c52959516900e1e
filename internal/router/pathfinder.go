package router

import "swapRouter/internal/model"

// DefaultMaxHops bounds path search. Unbounded search is disallowed: it caps
// both worst-case latency and the number of hop simulations a quote can fan
// out into.
const DefaultMaxHops = 3

// FindPath runs a breadth-first search from tokenIn to tokenOut and returns
// the pools of the shortest path, at most maxHops long. FIFO expansion
// guarantees the first completed path has the fewest hops; ties fall to edge
// insertion order. tokenIn == tokenOut yields an empty path, not a miss. The
// second return is false when no path exists within the bound.
func FindPath(g *Graph, tokenIn, tokenOut string, maxHops int) ([]model.Pool, bool) {
	if g == nil {
		return nil, false
	}
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	from := model.NormalizeAddress(tokenIn)
	to := model.NormalizeAddress(tokenOut)
	if from == to {
		return []model.Pool{}, true
	}

	type branch struct {
		token string
		path  []model.Pool
	}

	queue := []branch{{token: from, path: nil}}
	// A token reached once needs no second visit: BFS reaches every token
	// first along a shortest path, and revisiting would only form cycles.
	visited := map[string]struct{}{from: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if len(current.path) >= maxHops {
			continue
		}

		for _, edge := range g.Edges(current.token) {
			if _, ok := visited[edge.Neighbor]; ok {
				continue
			}

			path := make([]model.Pool, len(current.path), len(current.path)+1)
			copy(path, current.path)
			path = append(path, edge.Pool)

			if edge.Neighbor == to {
				return path, true
			}

			visited[edge.Neighbor] = struct{}{}
			queue = append(queue, branch{token: edge.Neighbor, path: path})
		}
	}

	return nil, false
}
