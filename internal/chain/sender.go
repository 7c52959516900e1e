package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sender signs and submits transactions for a single account. It is the
// wallet capability the execution layer depends on; any other wallet (a
// browser extension bridge, a remote signer) can stand in behind the same
// interface.
type Sender struct {
	client  *Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewSender builds a Sender from a hex-encoded private key.
func NewSender(ctx context.Context, client *Client, privateKeyHex string) (*Sender, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	return &Sender{
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// Address returns the sending account.
func (s *Sender) Address() common.Address {
	return s.address
}

// SubmitTransaction signs and broadcasts a transaction to the given contract
// and returns its hash. Gas limit comes from estimation with headroom added.
func (s *Sender) SubmitTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	msg := ethereum.CallMsg{From: s.address, To: &to, Value: value, Data: data}
	gasLimit, err := s.client.EstimateGas(ctx, msg)
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit += gasLimit / 5

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	return signed.Hash(), nil
}
