package storage

import (
	"context"

	"swapRouter/internal/model"
)

// PoolStore persists discovered pools. The routing layer receives one by
// injection; it never touches storage directly.
type PoolStore interface {
	SavePools(ctx context.Context, pools []model.Pool) error
	LoadPools(ctx context.Context) ([]model.Pool, error)
	// LoadPoolsForTokens returns pools where token0 or token1 is in the
	// given set (addresses normalized by the caller).
	LoadPoolsForTokens(ctx context.Context, tokens []string) ([]model.Pool, error)
}
