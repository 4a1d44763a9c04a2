package ir

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	addressType = mustNewType("address")
	bytes32Type = mustNewType("bytes32")

	tokenPairArgs = abi.Arguments{{Name: "sellToken", Type: addressType}, {Name: "buyToken", Type: addressType}}
	orderArgs     = abi.Arguments{{Name: "owner", Type: addressType}, {Name: "tokenPairHash", Type: bytes32Type}}
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %q: %v", t, err))
	}
	return typ
}

// TokenPairHash computes keccak256(abi.encode(sellToken, buyToken)).
// The hash is ordered: (A, B) and (B, A) are different pairs.
func TokenPairHash(sellToken, buyToken common.Address) common.Hash {
	packed, err := tokenPairArgs.Pack(sellToken, buyToken)
	if err != nil {
		// Static types only; packing cannot fail for well-typed inputs.
		panic(fmt.Sprintf("TokenPairHash: %v", err))
	}
	return crypto.Keccak256Hash(packed)
}

// OrderHash computes keccak256(abi.encode(owner, tokenPairHash)).
// One owner has at most one order per token pair.
func OrderHash(owner common.Address, tokenPairHash common.Hash) common.Hash {
	packed, err := orderArgs.Pack(owner, [32]byte(tokenPairHash))
	if err != nil {
		panic(fmt.Sprintf("OrderHash: %v", err))
	}
	return crypto.Keccak256Hash(packed)
}

// NewTokenPair builds a TokenPair with its derived hash.
func NewTokenPair(sellToken, buyToken common.Address) TokenPair {
	return TokenPair{
		Hash:      TokenPairHash(sellToken, buyToken),
		SellToken: sellToken,
		BuyToken:  buyToken,
	}
}
