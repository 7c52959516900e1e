package swapexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition marks an event that is not legal from the current
// status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrSuperseded is returned when a confirmation arrives after the swap
// parameters changed; the result is dropped rather than misreported.
var ErrSuperseded = errors.New("submission superseded by parameter change")

// ErrorKind classifies an execution failure for presentation and retry
// decisions.
type ErrorKind string

const (
	// ErrKindUserRejected means the signer declined; not retryable as-is.
	ErrKindUserRejected ErrorKind = "user_rejected"
	// ErrKindInsufficientBalance means the wallet holds less than amountIn.
	ErrKindInsufficientBalance ErrorKind = "insufficient_balance"
	// ErrKindInsufficientAllowance means the router spend approval is too
	// small; resolved by the approval flow, not by retrying the swap.
	ErrKindInsufficientAllowance ErrorKind = "insufficient_allowance"
	// ErrKindReverted means the transaction mined with status 0.
	ErrKindReverted ErrorKind = "reverted"
	// ErrKindNetwork covers transport failures; retryable.
	ErrKindNetwork ErrorKind = "network"
)

// ExecError pairs a failure with its classification. It wraps the cause so
// errors.Is keeps working through it.
type ExecError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// NewExecError wraps err under kind.
func NewExecError(kind ErrorKind, err error) *ExecError {
	return &ExecError{Kind: kind, Err: err}
}

// Classify maps an arbitrary execution failure onto the taxonomy. Already
// classified errors pass through; signer rejections are recognized by the
// conventional "denied"/"rejected" message; everything else is a network
// fault.
func Classify(err error) *ExecError {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "user denied") || strings.Contains(msg, "user rejected") {
		return NewExecError(ErrKindUserRejected, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewExecError(ErrKindNetwork, err)
	}
	if strings.Contains(msg, "execution reverted") {
		return NewExecError(ErrKindReverted, err)
	}
	return NewExecError(ErrKindNetwork, err)
}
