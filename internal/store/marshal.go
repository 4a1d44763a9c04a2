package store

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// marshalAmount converts an amount to base-10 TEXT for storage.
func marshalAmount(v *big.Int) (string, error) {
	if v == nil {
		return "", fmt.Errorf("marshal amount: nil")
	}
	if v.Sign() < 0 {
		return "", fmt.Errorf("marshal amount: negative value %s", v)
	}
	return v.String(), nil
}

// unmarshalAmount parses base-10 TEXT from storage.
func unmarshalAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("unmarshal amount: invalid value %q", s)
	}
	return v, nil
}

// unmarshalAddress parses a hex address, rejecting anything that is not one.
func unmarshalAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("unmarshal address: invalid value %q", s)
	}
	return common.HexToAddress(s), nil
}

// unmarshalHash parses a 0x-prefixed 32-byte hex hash.
func unmarshalHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("unmarshal hash: invalid value %q", s)
	}
	return common.BytesToHash(b), nil
}
