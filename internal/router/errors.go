package router

import "errors"

var (
	// ErrInvalidAmount means the input amount is non-numeric or not
	// positive. Detected before any network call.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNoRouteFound means neither a direct pool nor a multi-hop path
	// within the hop bound connects the pair.
	ErrNoRouteFound = errors.New("no route found")

	// ErrHopSimulationFailed means a hop of a multi-hop quote failed to
	// simulate. The partial route is discarded; callers surface this the
	// same way as no route.
	ErrHopSimulationFailed = errors.New("hop simulation failed")
)
