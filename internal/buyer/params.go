package buyer

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/multibuy/internal/basket"
	"github.com/ligun0805/multibuy/internal/multibuyer"
	"github.com/ligun0805/multibuy/internal/payload"
)

type Params struct {
	Basket   common.Address
	TotalEth *big.Int

	BridgeSymbol string
	NativeSymbol string
	SlippageBps  int // same zero value and NoSlippage rules as payload.Request

	// Key signs and sends the purchase. Without it the purchase is only described,
	// with gas estimated as if sent by From.
	Key  *ecdsa.PrivateKey
	From common.Address

	// PlanOnly stops after encoding the forwarder call.
	PlanOnly bool
	// Confirm is asked before a signed purchase is sent; false aborts with ErrAborted.
	Confirm func(*Result) bool

	Logf func(format string, a ...any)
}

func (p *Params) logf(format string, a ...any) {
	if p.Logf != nil {
		p.Logf(format, a...)
	}
}

// Result is everything a purchase produced, whether or not it was sent.
type Result struct {
	Snapshot *basket.Snapshot
	Quote    payload.PriceQuote
	Plan     *payload.Result
	Mode     multibuyer.Mode
	CallData []byte
	Value    *big.Int

	// Exactly one of Tx and Unsigned is set unless PlanOnly was requested.
	Tx       *types.Transaction
	Unsigned *multibuyer.TxDescriptor
}
