package swapexec

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"swapRouter/internal/model"
)

var (
	execTokenIn  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	execTokenOut = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	execRouter   = common.HexToAddress("0x9999999999999999999999999999999999999999")
	execOwner    = common.HexToAddress("0x7777777777777777777777777777777777777777")
)

type fakeAccount struct {
	mu        sync.Mutex
	balance   *big.Int
	allowance *big.Int
}

func (f *fakeAccount) Allowance(context.Context, string, common.Address, common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeAccount) BalanceOf(context.Context, string, common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeAccount) setAllowance(v *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowance = v
}

type submission struct {
	to   common.Address
	data []byte
}

type fakeSender struct {
	mu   sync.Mutex
	sent []submission
}

func (f *fakeSender) Address() common.Address { return execOwner }

func (f *fakeSender) SubmitTransaction(_ context.Context, to common.Address, data []byte, _ *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, submission{to: to, data: data})
	return crypto.Keccak256Hash(data), nil
}

func (f *fakeSender) submissions() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.sent...)
}

type fakeWaiter struct {
	status uint64
	onWait func(hash common.Hash)
}

func (f *fakeWaiter) WaitForConfirmation(_ context.Context, hash common.Hash, _ time.Duration) (*types.Receipt, error) {
	if f.onWait != nil {
		f.onWait(hash)
	}
	return &types.Receipt{Status: f.status, TxHash: hash}, nil
}

func execRequest(amountIn *big.Int) Request {
	return Request{
		Params: Params{
			TokenIn:     execTokenIn,
			TokenOut:    execTokenOut,
			AmountIn:    "100",
			SlippageBps: 50,
		},
		Quote: model.Quote{
			TokenIn:   execTokenIn,
			TokenOut:  execTokenOut,
			AmountIn:  "100",
			AmountOut: "98000000000000000000",
			Fee:       3000,
			Route:     []string{execTokenIn, execTokenOut},
		},
		Detail: model.RouteDetail{
			Pools: []model.Pool{{Address: "0x1111111111111111111111111111111111111111"}},
			Fees:  []uint32{3000},
		},
		AmountIn: amountIn,
	}
}

func TestExecuteWithSufficientAllowance(t *testing.T) {
	amountIn := big.NewInt(100)
	account := &fakeAccount{balance: big.NewInt(1000), allowance: big.NewInt(1000)}
	sender := &fakeSender{}
	waiter := &fakeWaiter{status: types.ReceiptStatusSuccessful}
	machine := NewMachine(nil)

	executor := NewExecutor(account, sender, waiter, machine, ExecutorConfig{Router: execRouter}, nil)
	if err := executor.Execute(context.Background(), execRequest(amountIn)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if machine.Status() != StatusSwapConfirmed {
		t.Errorf("status = %s, want swap_confirmed", machine.Status())
	}
	sent := sender.submissions()
	if len(sent) != 1 {
		t.Fatalf("submitted %d transactions, want only the swap", len(sent))
	}
	if sent[0].to != execRouter {
		t.Errorf("swap sent to %s, want the router", sent[0].to.Hex())
	}
}

func TestExecuteRunsApprovalFirst(t *testing.T) {
	amountIn := big.NewInt(100)
	account := &fakeAccount{balance: big.NewInt(1000), allowance: big.NewInt(0)}
	sender := &fakeSender{}
	machine := NewMachine(nil)

	// The approval receipt "takes effect": allowance covers amountIn once
	// the first transaction confirms.
	waiter := &fakeWaiter{status: types.ReceiptStatusSuccessful}
	waiter.onWait = func(common.Hash) {
		account.setAllowance(big.NewInt(100))
	}

	executor := NewExecutor(account, sender, waiter, machine, ExecutorConfig{Router: execRouter}, nil)
	if err := executor.Execute(context.Background(), execRequest(amountIn)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if machine.Status() != StatusSwapConfirmed {
		t.Errorf("status = %s, want swap_confirmed", machine.Status())
	}
	sent := sender.submissions()
	if len(sent) != 2 {
		t.Fatalf("submitted %d transactions, want approval then swap", len(sent))
	}
	if sent[0].to != common.HexToAddress(execTokenIn) {
		t.Errorf("first tx to %s, want the token contract", sent[0].to.Hex())
	}
	if sent[1].to != execRouter {
		t.Errorf("second tx to %s, want the router", sent[1].to.Hex())
	}
}

func TestExecuteInsufficientBalance(t *testing.T) {
	account := &fakeAccount{balance: big.NewInt(5), allowance: big.NewInt(1000)}
	machine := NewMachine(nil)
	executor := NewExecutor(account, &fakeSender{}, &fakeWaiter{status: types.ReceiptStatusSuccessful}, machine, ExecutorConfig{Router: execRouter}, nil)

	err := executor.Execute(context.Background(), execRequest(big.NewInt(100)))
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Kind != ErrKindInsufficientBalance {
		t.Fatalf("err = %v, want insufficient_balance", err)
	}
	if machine.Status() != StatusError {
		t.Errorf("status = %s, want error", machine.Status())
	}
}

func TestExecuteRevertedSwap(t *testing.T) {
	account := &fakeAccount{balance: big.NewInt(1000), allowance: big.NewInt(1000)}
	machine := NewMachine(nil)
	executor := NewExecutor(account, &fakeSender{}, &fakeWaiter{status: types.ReceiptStatusFailed}, machine, ExecutorConfig{Router: execRouter}, nil)

	err := executor.Execute(context.Background(), execRequest(big.NewInt(100)))
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Kind != ErrKindReverted {
		t.Fatalf("err = %v, want reverted", err)
	}
	if machine.Status() != StatusError {
		t.Errorf("status = %s, want error", machine.Status())
	}
	if machine.LastError() == nil || machine.LastError().Kind != ErrKindReverted {
		t.Errorf("LastError = %v, want the reverted classification", machine.LastError())
	}
}

func TestExecuteSupersededWhileSwapPending(t *testing.T) {
	account := &fakeAccount{balance: big.NewInt(1000), allowance: big.NewInt(1000)}
	sender := &fakeSender{}
	machine := NewMachine(nil)

	waiter := &fakeWaiter{status: types.ReceiptStatusSuccessful}
	waiter.onWait = func(common.Hash) {
		// The user changes the amount while the swap is in the mempool.
		machine.SetParams(Params{
			TokenIn:     execTokenIn,
			TokenOut:    execTokenOut,
			AmountIn:    "250",
			SlippageBps: 50,
		})
	}

	executor := NewExecutor(account, sender, waiter, machine, ExecutorConfig{Router: execRouter}, nil)
	err := executor.Execute(context.Background(), execRequest(big.NewInt(100)))
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if machine.Status() != StatusSwapPending {
		t.Errorf("status = %s, want swap_pending left untouched for the new parameters", machine.Status())
	}
}

func TestMinimumOut(t *testing.T) {
	tests := []struct {
		amountOut string
		bps       uint32
		want      string
	}{
		{"10000", 50, "9950"},
		{"10000", 0, "10000"},
		{"98000000000000000000", 100, "97020000000000000000"},
	}
	for _, tt := range tests {
		amountOut, _ := new(big.Int).SetString(tt.amountOut, 10)
		if got := minimumOut(amountOut, tt.bps); got.String() != tt.want {
			t.Errorf("minimumOut(%s, %d) = %s, want %s", tt.amountOut, tt.bps, got, tt.want)
		}
	}
}
