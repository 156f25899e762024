package payload

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// PriceDecimals is the fixed-point precision of PriceQuote entries (prices are scaled by 10^10).
	PriceDecimals = 10
	// NativeDecimals is the precision of the native asset (wei).
	NativeDecimals = 18

	DefaultBridgeSymbol = "BNT"
	DefaultNativeSymbol = "ETH"
	DefaultSlippageBps  = 100
	// NoSlippage disables the min-return haircut.
	NoSlippage = -1

	bpsDenominator = 10_000
)

// TokenInfo describes one basket constituent as read from chain.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
	Balance  *big.Int
	Weight   *big.Int
}

// PriceQuote maps a symbol to its price in the native asset, scaled by 10^PriceDecimals.
type PriceQuote map[string]*big.Int

func (q PriceQuote) lookup(symbol string) (*big.Int, error) {
	p, ok := q[symbol]
	if !ok || p == nil || p.Sign() <= 0 {
		return nil, &MissingPriceError{Symbol: symbol}
	}
	return p, nil
}

// Symbols returns the quoted symbols in no particular order.
func (q PriceQuote) Symbols() []string {
	out := make([]string, 0, len(q))
	for s := range q {
		out = append(out, s)
	}
	return out
}

// Step is one forwarded call of a purchase.
type Step struct {
	Symbol string // asset acquired by this step
	Target common.Address
	Call   []byte
	// Value is the ETH attached for the first step and the bridge amount spent for the others.
	Value         *big.Int
	ValueDecimals uint8
	MinReturn     *big.Int
	// ReturnDecimals is the precision of MinReturn (the acquired asset's decimals).
	ReturnDecimals uint8
}

// PackedInstructions is the serialized plan consumed by the MultiBuyer forwarder.
type PackedInstructions struct {
	Targets []common.Address
	Data    []byte
	Offsets []*big.Int
	Values  []*big.Int
}

// Result is the output of Build.
type Result struct {
	BridgeAmount    *big.Int
	BridgeMinReturn *big.Int
	Capitalization  *big.Int
	FirstPurchase   bool
	Plan            []Step
	Packed          PackedInstructions
}

// Encoder produces call-data for single conversion steps on the conversion network.
type Encoder interface {
	Address() common.Address
	Path(from, to string) ([]common.Address, error)
	Convert(path []common.Address, amount, minReturn *big.Int) ([]byte, error)
	ClaimAndConvert(path []common.Address, amount, minReturn *big.Int) ([]byte, error)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
