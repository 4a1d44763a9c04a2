package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Addr derives a stable address from a name: the last 20 bytes of
// keccak256(name). The same name always yields the same address.
func Addr(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name)))
}

// Ether returns n * 10^18.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}
