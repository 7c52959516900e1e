package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Allowance reads the ERC20 allowance granted by owner to spender.
func (r *Reader) Allowance(ctx context.Context, token string, owner, spender common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	addr, err := parseAddress(token)
	if err != nil {
		return nil, err
	}

	values, err := r.callMethod(ctx, addr, erc20, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	allowance, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	return allowance, nil
}

// BalanceOf reads the ERC20 balance of an account.
func (r *Reader) BalanceOf(ctx context.Context, token string, account common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	addr, err := parseAddress(token)
	if err != nil {
		return nil, err
	}

	values, err := r.callMethod(ctx, addr, erc20, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return balance, nil
}

// BuildApproveCalldata encodes an ERC20 approve(spender, amount) call.
func BuildApproveCalldata(spender common.Address, amount *big.Int) ([]byte, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}
