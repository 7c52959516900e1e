package swapexec

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
)

// AccountReader reads wallet-facing ERC20 state.
type AccountReader interface {
	Allowance(ctx context.Context, token string, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token string, account common.Address) (*big.Int, error)
}

// TxSubmitter signs and broadcasts transactions for one account.
type TxSubmitter interface {
	Address() common.Address
	SubmitTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// ReceiptWaiter blocks until a transaction is mined.
type ReceiptWaiter interface {
	WaitForConfirmation(ctx context.Context, hash common.Hash, pollInterval time.Duration) (*types.Receipt, error)
}

// ExecutorConfig tunes execution. Zero values select the defaults.
type ExecutorConfig struct {
	Router       common.Address
	SlippageBps  uint32
	Deadline     time.Duration
	PollInterval time.Duration
}

const (
	defaultSlippageBps  = 50
	defaultDeadline     = 20 * time.Minute
	defaultPollInterval = 3 * time.Second
)

// Request is everything execution needs: the bound parameters, the quote
// being executed, its route detail, and the raw input amount.
type Request struct {
	Params   Params
	Quote    model.Quote
	Detail   model.RouteDetail
	AmountIn *big.Int
}

// Executor drives a swap through the status machine: balance and allowance
// checks, the approval transaction when needed, then the swap itself posted
// to the router with slippage-bounded minimum output.
type Executor struct {
	reader  AccountReader
	sender  TxSubmitter
	waiter  ReceiptWaiter
	machine *Machine
	cfg     ExecutorConfig
	logger  *zap.Logger
}

// NewExecutor builds an Executor over the given machine.
func NewExecutor(reader AccountReader, sender TxSubmitter, waiter ReceiptWaiter, machine *Machine, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlippageBps == 0 {
		cfg.SlippageBps = defaultSlippageBps
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Executor{
		reader:  reader,
		sender:  sender,
		waiter:  waiter,
		machine: machine,
		cfg:     cfg,
		logger:  logger,
	}
}

// Machine exposes the underlying status machine for observation.
func (x *Executor) Machine() *Machine { return x.machine }

// Execute runs the full swap flow. On failure the machine lands in the
// error status and the classified error is returned; a confirmation
// arriving after a parameter change returns ErrSuperseded without touching
// the status.
func (x *Executor) Execute(ctx context.Context, req Request) error {
	x.machine.SetParams(req.Params)
	if err := x.machine.Fire(EventQuoteReady); err != nil {
		return err
	}

	if err := x.execute(ctx, req); err != nil {
		if errors.Is(err, ErrSuperseded) {
			return err
		}
		execErr := Classify(err)
		x.machine.Fail(execErr)
		return execErr
	}
	return nil
}

func (x *Executor) execute(ctx context.Context, req Request) error {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return fmt.Errorf("amount in must be positive")
	}

	owner := x.sender.Address()
	balance, err := x.reader.BalanceOf(ctx, req.Quote.TokenIn, owner)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance.Cmp(req.AmountIn) < 0 {
		return NewExecError(ErrKindInsufficientBalance,
			fmt.Errorf("balance %s < amount in %s", balance, req.AmountIn))
	}

	if err := x.ensureAllowance(ctx, req, owner); err != nil {
		return err
	}

	if err := x.machine.Fire(EventSwapPrepared); err != nil {
		return err
	}

	// A refreshed quote may have raised amountIn past the approval that was
	// in place when the flow started; recheck before swapping.
	allowance, err := x.reader.Allowance(ctx, req.Quote.TokenIn, owner, x.cfg.Router)
	if err != nil {
		return fmt.Errorf("recheck allowance: %w", err)
	}
	if allowance.Cmp(req.AmountIn) < 0 {
		if err := x.approve(ctx, req); err != nil {
			return err
		}
		if err := x.machine.Fire(EventSwapPrepared); err != nil {
			return err
		}
	}

	return x.swap(ctx, req)
}

// ensureAllowance runs the approval flow when the current allowance does
// not cover amountIn.
func (x *Executor) ensureAllowance(ctx context.Context, req Request, owner common.Address) error {
	allowance, err := x.reader.Allowance(ctx, req.Quote.TokenIn, owner, x.cfg.Router)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(req.AmountIn) >= 0 {
		return nil
	}
	return x.approve(ctx, req)
}

// approve runs the approval transaction. EventApprovalNeeded is legal both
// from quote_ready and from preparing_swap.
func (x *Executor) approve(ctx context.Context, req Request) error {
	if err := x.machine.Fire(EventApprovalNeeded); err != nil {
		return err
	}
	if err := x.machine.Fire(EventApproveStarted); err != nil {
		return err
	}

	data, err := dex.BuildApproveCalldata(x.cfg.Router, req.AmountIn)
	if err != nil {
		return fmt.Errorf("build approve calldata: %w", err)
	}

	token := common.HexToAddress(req.Quote.TokenIn)
	hash, err := x.sender.SubmitTransaction(ctx, token, data, nil)
	if err != nil {
		return fmt.Errorf("submit approval: %w", err)
	}
	if err := x.machine.MarkSubmitted(EventApproveSubmitted); err != nil {
		return err
	}
	x.logger.Info("approval submitted",
		zap.String("token", req.Quote.TokenIn),
		zap.String("tx", hash.Hex()),
	)

	receipt, err := x.waiter.WaitForConfirmation(ctx, hash, x.cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("wait for approval: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return NewExecError(ErrKindReverted, fmt.Errorf("approval %s reverted", hash.Hex()))
	}

	confirmed, err := x.machine.Confirm(EventApproveConfirmed)
	if err != nil {
		return err
	}
	if !confirmed {
		return ErrSuperseded
	}
	return nil
}

func (x *Executor) swap(ctx context.Context, req Request) error {
	amountOut, ok := new(big.Int).SetString(req.Quote.AmountOut, 10)
	if !ok {
		return fmt.Errorf("invalid quote amount out: %s", req.Quote.AmountOut)
	}
	minOut := minimumOut(amountOut, x.cfg.SlippageBps)
	deadline := big.NewInt(time.Now().Add(x.cfg.Deadline).Unix())

	params := dex.SwapParams{
		TokenIn:          common.HexToAddress(req.Quote.TokenIn),
		TokenOut:         common.HexToAddress(req.Quote.TokenOut),
		Fee:              req.Quote.Fee,
		Recipient:        x.sender.Address(),
		Deadline:         deadline,
		AmountIn:         req.AmountIn,
		AmountOutMinimum: minOut,
	}

	var data []byte
	var err error
	if len(req.Detail.Pools) > 1 {
		params.Path, err = hexutil.Decode(req.Detail.EncodedPath)
		if err != nil {
			return fmt.Errorf("decode route path: %w", err)
		}
		data, err = dex.BuildExactInputCalldata(params)
	} else {
		data, err = dex.BuildExactInputSingleCalldata(params)
	}
	if err != nil {
		return fmt.Errorf("build swap calldata: %w", err)
	}

	if err := x.machine.Fire(EventSwapStarted); err != nil {
		return err
	}

	hash, err := x.sender.SubmitTransaction(ctx, x.cfg.Router, data, nil)
	if err != nil {
		return fmt.Errorf("submit swap: %w", err)
	}
	if err := x.machine.MarkSubmitted(EventSwapSubmitted); err != nil {
		return err
	}
	x.logger.Info("swap submitted",
		zap.String("token_in", req.Quote.TokenIn),
		zap.String("token_out", req.Quote.TokenOut),
		zap.String("min_out", minOut.String()),
		zap.String("tx", hash.Hex()),
	)

	receipt, err := x.waiter.WaitForConfirmation(ctx, hash, x.cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("wait for swap: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return NewExecError(ErrKindReverted, fmt.Errorf("swap %s reverted", hash.Hex()))
	}

	confirmed, err := x.machine.Confirm(EventSwapConfirmed)
	if err != nil {
		return err
	}
	if !confirmed {
		return ErrSuperseded
	}
	return nil
}

// minimumOut applies the slippage tolerance: amountOut scaled down by
// slippageBps out of 10000.
func minimumOut(amountOut *big.Int, slippageBps uint32) *big.Int {
	keep := big.NewInt(int64(10000 - slippageBps))
	out := new(big.Int).Mul(amountOut, keep)
	return out.Div(out, big.NewInt(10000))
}
