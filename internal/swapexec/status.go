package swapexec

import "fmt"

// Status is a swap execution lifecycle state.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusQuoteReady        Status = "quote_ready"
	StatusApprovalNeeded    Status = "approval_needed"
	StatusApproving         Status = "approving"
	StatusApprovalPending   Status = "approval_pending"
	StatusApprovalConfirmed Status = "approval_confirmed"
	StatusPreparingSwap     Status = "preparing_swap"
	StatusSwapping          Status = "swapping"
	StatusSwapPending       Status = "swap_pending"
	StatusSwapConfirmed     Status = "swap_confirmed"
	StatusError             Status = "error"
)

// Event drives transitions between statuses.
type Event string

const (
	EventQuoteReady       Event = "quote_ready"
	EventApprovalNeeded   Event = "approval_needed"
	EventApproveStarted   Event = "approve_started"
	EventApproveSubmitted Event = "approve_submitted"
	EventApproveConfirmed Event = "approve_confirmed"
	EventSwapPrepared     Event = "swap_prepared"
	EventSwapStarted      Event = "swap_started"
	EventSwapSubmitted    Event = "swap_submitted"
	EventSwapConfirmed    Event = "swap_confirmed"
	EventFailed           Event = "failed"
	EventReset            Event = "reset"
)

// transitions is the legal state graph. EventFailed and EventReset are
// handled separately: failure is reachable from every state, and reset
// returns to idle from every state.
var transitions = map[Status]map[Event]Status{
	StatusIdle: {
		EventQuoteReady: StatusQuoteReady,
	},
	StatusQuoteReady: {
		EventQuoteReady:     StatusQuoteReady,
		EventApprovalNeeded: StatusApprovalNeeded,
		EventSwapPrepared:   StatusPreparingSwap,
	},
	StatusApprovalNeeded: {
		EventApproveStarted: StatusApproving,
	},
	StatusApproving: {
		EventApproveSubmitted: StatusApprovalPending,
	},
	StatusApprovalPending: {
		EventApproveConfirmed: StatusApprovalConfirmed,
	},
	StatusApprovalConfirmed: {
		EventSwapPrepared: StatusPreparingSwap,
	},
	StatusPreparingSwap: {
		EventSwapStarted: StatusSwapping,
		// Allowance can prove insufficient only at preparation time when a
		// quote refresh raised the input amount.
		EventApprovalNeeded: StatusApprovalNeeded,
	},
	StatusSwapping: {
		EventSwapSubmitted: StatusSwapPending,
	},
	StatusSwapPending: {
		EventSwapConfirmed: StatusSwapConfirmed,
	},
	StatusSwapConfirmed: {
		EventQuoteReady: StatusQuoteReady,
	},
	StatusError: {
		EventQuoteReady: StatusQuoteReady,
	},
}

// Transition applies event to status and returns the next status. It is
// pure: callers needing history or guards wrap it (see Machine).
func Transition(status Status, event Event) (Status, error) {
	switch event {
	case EventFailed:
		return StatusError, nil
	case EventReset:
		return StatusIdle, nil
	}
	next, ok := transitions[status][event]
	if !ok {
		return status, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, status)
	}
	return next, nil
}
