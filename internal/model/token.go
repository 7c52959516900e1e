package model

import "strings"

// Token captures ERC20 metadata for a tradable token.
type Token struct {
	ChainID  uint64 `json:"chain_id"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// NormalizeAddress lowercases a hex address for case-insensitive comparison.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Equal reports whether two tokens identify the same asset.
func (t Token) Equal(other Token) bool {
	return t.ChainID == other.ChainID &&
		NormalizeAddress(t.Address) == NormalizeAddress(other.Address)
}
