package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SwapParams describes one exact-input swap to encode. For multi-hop routes
// Path carries the packed (token, fee, token, ...) byte path; for single-hop
// swaps TokenOut and Fee are used directly.
type SwapParams struct {
	TokenIn          common.Address
	TokenOut         common.Address
	Fee              uint32
	Path             []byte
	Recipient        common.Address
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

// EncodePath packs a token/fee route into the router's path byte format:
// 20-byte token, 3-byte fee, 20-byte token, and so on. len(fees) must be
// len(tokens)-1.
func EncodePath(tokens []string, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("path needs at least two tokens, got %d", len(tokens))
	}
	if len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("path needs %d fees, got %d", len(tokens)-1, len(fees))
	}

	out := make([]byte, 0, len(tokens)*20+len(fees)*3)
	for i, token := range tokens {
		addr, err := parseAddress(token)
		if err != nil {
			return nil, err
		}
		out = append(out, addr.Bytes()...)
		if i < len(fees) {
			fee := fees[i]
			out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
		}
	}
	return out, nil
}

// DecodePathHex decodes a hex-encoded packed path back into token addresses
// and fees. Used to validate cached route detail before execution.
func DecodePathHex(pathHex string) ([]string, []uint32, error) {
	raw, err := hexutil.Decode(pathHex)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid path hex: %w", err)
	}
	if len(raw) < 43 || (len(raw)-20)%23 != 0 {
		return nil, nil, fmt.Errorf("invalid path length: %d", len(raw))
	}

	tokens := []string{common.BytesToAddress(raw[:20]).Hex()}
	var fees []uint32
	for offset := 20; offset < len(raw); offset += 23 {
		fee := uint32(raw[offset])<<16 | uint32(raw[offset+1])<<8 | uint32(raw[offset+2])
		fees = append(fees, fee)
		tokens = append(tokens, common.BytesToAddress(raw[offset+3:offset+23]).Hex())
	}
	return tokens, fees, nil
}

// BuildExactInputSingleCalldata encodes a single-hop exactInputSingle call.
func BuildExactInputSingleCalldata(params SwapParams) ([]byte, error) {
	routerABI, err := SwapRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}

	args := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		Deadline          *big.Int
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           params.TokenIn,
		TokenOut:          params.TokenOut,
		Fee:               big.NewInt(int64(params.Fee)),
		Recipient:         params.Recipient,
		Deadline:          params.Deadline,
		AmountIn:          params.AmountIn,
		AmountOutMinimum:  params.AmountOutMinimum,
		SqrtPriceLimitX96: big.NewInt(0),
	}

	data, err := routerABI.Pack("exactInputSingle", args)
	if err != nil {
		return nil, fmt.Errorf("pack exactInputSingle: %w", err)
	}
	return data, nil
}

// BuildExactInputCalldata encodes a multi-hop exactInput call over a packed
// path.
func BuildExactInputCalldata(params SwapParams) ([]byte, error) {
	routerABI, err := SwapRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	if len(params.Path) == 0 {
		return nil, fmt.Errorf("path is required for multi-hop swap")
	}

	args := struct {
		Path             []byte
		Recipient        common.Address
		Deadline         *big.Int
		AmountIn         *big.Int
		AmountOutMinimum *big.Int
	}{
		Path:             params.Path,
		Recipient:        params.Recipient,
		Deadline:         params.Deadline,
		AmountIn:         params.AmountIn,
		AmountOutMinimum: params.AmountOutMinimum,
	}

	data, err := routerABI.Pack("exactInput", args)
	if err != nil {
		return nil, fmt.Errorf("pack exactInput: %w", err)
	}
	return data, nil
}
