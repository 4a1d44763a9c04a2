package ir

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrMalformedPayload is returned when performData cannot be decoded.
var ErrMalformedPayload = errors.New("malformed performData")

// performData layout, ABI-encoded as parallel arrays so any keeper can
// treat it as opaque bytes:
//
//	(bytes32[] tokenPairHashes, bytes32[] orderHashes, address[] owners,
//	 address[] sellTokens, address[] buyTokens, uint256[] sellAmounts)
var payloadArgs = abi.Arguments{
	{Name: "tokenPairHashes", Type: mustNewType("bytes32[]")},
	{Name: "orderHashes", Type: mustNewType("bytes32[]")},
	{Name: "owners", Type: mustNewType("address[]")},
	{Name: "sellTokens", Type: mustNewType("address[]")},
	{Name: "buyTokens", Type: mustNewType("address[]")},
	{Name: "sellAmounts", Type: mustNewType("uint256[]")},
}

// EncodePerformData encodes due orders in the given order.
// An empty slice encodes to an empty (non-nil) byte slice.
func EncodePerformData(orders []DueOrder) ([]byte, error) {
	if len(orders) == 0 {
		return []byte{}, nil
	}

	pairHashes := make([][32]byte, len(orders))
	orderHashes := make([][32]byte, len(orders))
	owners := make([]common.Address, len(orders))
	sellTokens := make([]common.Address, len(orders))
	buyTokens := make([]common.Address, len(orders))
	amounts := make([]*big.Int, len(orders))

	for i, o := range orders {
		if o.SellAmount == nil || o.SellAmount.Sign() < 0 {
			return nil, fmt.Errorf("encode performData: entry %d: invalid sell amount", i)
		}
		pairHashes[i] = o.TokenPairHash
		orderHashes[i] = o.OrderHash
		owners[i] = o.Owner
		sellTokens[i] = o.SellToken
		buyTokens[i] = o.BuyToken
		amounts[i] = o.SellAmount
	}

	data, err := payloadArgs.Pack(pairHashes, orderHashes, owners, sellTokens, buyTokens, amounts)
	if err != nil {
		return nil, fmt.Errorf("encode performData: %w", err)
	}
	return data, nil
}

// DecodePerformData decodes a payload produced by EncodePerformData.
// Empty input decodes to no orders.
func DecodePerformData(data []byte) ([]DueOrder, error) {
	if len(data) == 0 {
		return nil, nil
	}

	values, err := payloadArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(values) != len(payloadArgs) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedPayload, len(payloadArgs), len(values))
	}

	pairHashes, ok1 := values[0].([][32]byte)
	orderHashes, ok2 := values[1].([][32]byte)
	owners, ok3 := values[2].([]common.Address)
	sellTokens, ok4 := values[3].([]common.Address)
	buyTokens, ok5 := values[4].([]common.Address)
	amounts, ok6 := values[5].([]*big.Int)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return nil, fmt.Errorf("%w: unexpected field types", ErrMalformedPayload)
	}

	n := len(orderHashes)
	if len(pairHashes) != n || len(owners) != n || len(sellTokens) != n || len(buyTokens) != n || len(amounts) != n {
		return nil, fmt.Errorf("%w: array lengths differ", ErrMalformedPayload)
	}

	orders := make([]DueOrder, n)
	for i := range orders {
		orders[i] = DueOrder{
			TokenPairHash: pairHashes[i],
			OrderHash:     orderHashes[i],
			Owner:         owners[i],
			SellToken:     sellTokens[i],
			BuyToken:      buyTokens[i],
			SellAmount:    amounts[i],
		}
	}
	return orders, nil
}
