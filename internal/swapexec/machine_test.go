package swapexec

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransitionHappyPath(t *testing.T) {
	steps := []struct {
		event Event
		want  Status
	}{
		{EventQuoteReady, StatusQuoteReady},
		{EventApprovalNeeded, StatusApprovalNeeded},
		{EventApproveStarted, StatusApproving},
		{EventApproveSubmitted, StatusApprovalPending},
		{EventApproveConfirmed, StatusApprovalConfirmed},
		{EventSwapPrepared, StatusPreparingSwap},
		{EventSwapStarted, StatusSwapping},
		{EventSwapSubmitted, StatusSwapPending},
		{EventSwapConfirmed, StatusSwapConfirmed},
	}

	status := StatusIdle
	for _, step := range steps {
		next, err := Transition(status, step.event)
		if err != nil {
			t.Fatalf("Transition(%s, %s): %v", status, step.event, err)
		}
		if next != step.want {
			t.Fatalf("Transition(%s, %s) = %s, want %s", status, step.event, next, step.want)
		}
		status = next
	}
}

func TestTransitionSkipsApprovalWhenAllowed(t *testing.T) {
	next, err := Transition(StatusQuoteReady, EventSwapPrepared)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if next != StatusPreparingSwap {
		t.Errorf("quote_ready + swap_prepared = %s, want preparing_swap", next)
	}
}

func TestTransitionInvalid(t *testing.T) {
	tests := []struct {
		status Status
		event  Event
	}{
		{StatusIdle, EventSwapConfirmed},
		{StatusIdle, EventApproveConfirmed},
		{StatusSwapping, EventApproveStarted},
		{StatusSwapConfirmed, EventSwapConfirmed},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s+%s", tt.status, tt.event), func(t *testing.T) {
			if _, err := Transition(tt.status, tt.event); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestTransitionFailedFromAnywhere(t *testing.T) {
	for status := range transitions {
		next, err := Transition(status, EventFailed)
		if err != nil || next != StatusError {
			t.Errorf("Transition(%s, failed) = %s, %v; want error status", status, next, err)
		}
	}
}

func TestTransitionResetFromAnywhere(t *testing.T) {
	for status := range transitions {
		next, err := Transition(status, EventReset)
		if err != nil || next != StatusIdle {
			t.Errorf("Transition(%s, reset) = %s, %v; want idle", status, next, err)
		}
	}
}

func advanceTo(t *testing.T, m *Machine, events ...Event) {
	t.Helper()
	for _, event := range events {
		if err := m.Fire(event); err != nil {
			t.Fatalf("Fire(%s): %v", event, err)
		}
	}
}

func TestMachineStaleConfirmationDropped(t *testing.T) {
	m := NewMachine(nil)
	m.SetParams(Params{TokenIn: "0xa", TokenOut: "0xb", AmountIn: "100"})
	advanceTo(t, m, EventQuoteReady, EventSwapPrepared, EventSwapStarted)

	if err := m.MarkSubmitted(EventSwapSubmitted); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	if m.Status() != StatusSwapPending {
		t.Fatalf("status = %s, want swap_pending", m.Status())
	}

	// User edits the amount while the transaction is in flight.
	m.SetParams(Params{TokenIn: "0xa", TokenOut: "0xb", AmountIn: "250"})

	confirmed, err := m.Confirm(EventSwapConfirmed)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed {
		t.Error("confirmation for superseded parameters must be dropped")
	}
	if m.Status() != StatusSwapPending {
		t.Errorf("status = %s after dropped confirmation, want swap_pending unchanged", m.Status())
	}
}

func TestMachineConfirmMatchingSnapshot(t *testing.T) {
	m := NewMachine(nil)
	m.SetParams(Params{TokenIn: "0xa", TokenOut: "0xb", AmountIn: "100"})
	advanceTo(t, m, EventQuoteReady, EventSwapPrepared, EventSwapStarted)

	if err := m.MarkSubmitted(EventSwapSubmitted); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	confirmed, err := m.Confirm(EventSwapConfirmed)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !confirmed {
		t.Fatal("confirmation with unchanged parameters must apply")
	}
	if m.Status() != StatusSwapConfirmed {
		t.Errorf("status = %s, want swap_confirmed", m.Status())
	}
}

func TestMachineParamsCaseInsensitive(t *testing.T) {
	m := NewMachine(nil)
	m.SetParams(Params{TokenIn: "0xABC0000000000000000000000000000000000001", AmountIn: "1"})
	advanceTo(t, m, EventQuoteReady, EventSwapPrepared, EventSwapStarted)
	if err := m.MarkSubmitted(EventSwapSubmitted); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}

	// Same address, different casing: not a parameter change.
	m.SetParams(Params{TokenIn: "0xabc0000000000000000000000000000000000001", AmountIn: "1"})

	confirmed, err := m.Confirm(EventSwapConfirmed)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !confirmed {
		t.Error("re-cased address must not invalidate the submission")
	}
}

func TestMachineFailAndRecover(t *testing.T) {
	m := NewMachine(nil)
	advanceTo(t, m, EventQuoteReady, EventSwapPrepared)

	m.Fail(NewExecError(ErrKindNetwork, errors.New("rpc timeout")))
	if m.Status() != StatusError {
		t.Fatalf("status = %s after Fail, want error", m.Status())
	}
	if m.LastError() == nil || m.LastError().Kind != ErrKindNetwork {
		t.Errorf("LastError = %v, want recorded network error", m.LastError())
	}

	// A fresh quote recovers from the error state and clears it.
	advanceTo(t, m, EventQuoteReady)
	if m.Status() != StatusQuoteReady {
		t.Fatalf("status = %s, want quote_ready", m.Status())
	}
	if m.LastError() != nil {
		t.Error("LastError should clear on recovery")
	}
}

func TestMachineReset(t *testing.T) {
	m := NewMachine(nil)
	m.SetParams(Params{TokenIn: "0xa", AmountIn: "1"})
	advanceTo(t, m, EventQuoteReady)

	m.Reset()
	if m.Status() != StatusIdle {
		t.Errorf("status = %s after Reset, want idle", m.Status())
	}
	if m.Params() != (Params{}) {
		t.Errorf("Params = %+v after Reset, want zero", m.Params())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"user rejected", errors.New("user rejected the request"), ErrKindUserRejected},
		{"user denied", errors.New("MetaMask Tx Signature: User denied transaction signature"), ErrKindUserRejected},
		{"reverted", errors.New("execution reverted: STF"), ErrKindReverted},
		{"transport", errors.New("dial tcp: connection refused"), ErrKindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got.Kind != tt.want {
				t.Errorf("Classify(%v).Kind = %s, want %s", tt.err, got.Kind, tt.want)
			}
		})
	}
}

func TestClassifyPassThrough(t *testing.T) {
	orig := NewExecError(ErrKindInsufficientBalance, errors.New("balance 5 < amount in 10"))
	wrapped := fmt.Errorf("execute: %w", orig)
	if got := Classify(wrapped); got.Kind != ErrKindInsufficientBalance {
		t.Errorf("Classify kept kind %s, want insufficient_balance", got.Kind)
	}
}
