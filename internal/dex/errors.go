package dex

import "errors"

var (
	// ErrPoolNotFound means the factory has no pool for the pair and fee
	// tier. It is distinct from transport errors: callers fall through to
	// other tiers or multi-hop search instead of retrying.
	ErrPoolNotFound = errors.New("pool not found")
)
