package multibuyer

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxAsHex returns the raw signed transaction for manual broadcast.
func TxAsHex(tx *types.Transaction) string {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return ""
	}
	return hexutil.Encode(raw)
}

func latestBaseFee(ctx context.Context, b Backend) (*big.Int, error) {
	h, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	if h.BaseFee == nil {
		return nil, errors.New("no baseFee (pre-1559?)")
	}
	return new(big.Int).Set(h.BaseFee), nil
}

// feeCap = baseFee*mul + tip.
func feeCap(baseFee, tip *big.Int, mul int64) *big.Int {
	out := new(big.Int).Mul(baseFee, big.NewInt(mul))
	return out.Add(out, tip)
}

// withBuffer pads a gas estimate by pct percent.
func withBuffer(gas uint64, pct int64) uint64 {
	if pct <= 0 {
		return gas
	}
	return gas + gas*uint64(pct)/100
}
