package payload

import (
	"fmt"
	"math/big"
)

// Request carries everything Build needs for one purchase.
type Request struct {
	TotalEth *big.Int
	Tokens   []TokenInfo
	Quote    PriceQuote

	BridgeSymbol string // empty means DefaultBridgeSymbol
	NativeSymbol string // empty means DefaultNativeSymbol
	// SlippageBps is the tolerated shortfall per conversion. Zero means
	// DefaultSlippageBps; use NoSlippage to require the full quoted return.
	SlippageBps int

	TotalSupply *big.Int
}

func (r Request) bridgeSymbol() string {
	if r.BridgeSymbol == "" {
		return DefaultBridgeSymbol
	}
	return r.BridgeSymbol
}

func (r Request) nativeSymbol() string {
	if r.NativeSymbol == "" {
		return DefaultNativeSymbol
	}
	return r.NativeSymbol
}

func (r Request) slippageBps() int {
	switch r.SlippageBps {
	case 0:
		return DefaultSlippageBps
	case NoSlippage:
		return 0
	}
	return r.SlippageBps
}

// validate returns the index of the bridge entry in Tokens.
func (r Request) validate(enc Encoder) (int, error) {
	if enc == nil {
		return -1, invalidf("no conversion encoder")
	}
	if r.TotalEth == nil || r.TotalEth.Sign() <= 0 {
		return -1, invalidf("total ETH must be positive")
	}
	if len(r.Tokens) == 0 {
		return -1, invalidf("basket has no tokens")
	}
	if r.SlippageBps < NoSlippage || r.SlippageBps > bpsDenominator {
		return -1, invalidf("slippage %d bps outside [0, %d]", r.SlippageBps, bpsDenominator)
	}
	bridge := r.bridgeSymbol()
	idx := -1
	for i, t := range r.Tokens {
		if t.Balance != nil && t.Balance.Sign() < 0 {
			return -1, invalidf("negative balance for %s", t.Symbol)
		}
		if t.Weight != nil && t.Weight.Sign() < 0 {
			return -1, invalidf("negative weight for %s", t.Symbol)
		}
		if t.Symbol != bridge {
			continue
		}
		if idx >= 0 {
			return -1, invalidf("basket lists %s more than once", bridge)
		}
		idx = i
	}
	if idx < 0 {
		return -1, invalidf("basket does not contain bridge token %s", bridge)
	}
	return idx, nil
}

// Build computes the proportional purchase plan for req and packs it for the forwarder.
// It is pure: identical inputs produce byte-identical results, and no result is
// returned on any error.
func Build(req Request, enc Encoder) (*Result, error) {
	bridgeIdx, err := req.validate(enc)
	if err != nil {
		return nil, err
	}
	bridgeSym, nativeSym := req.bridgeSymbol(), req.nativeSymbol()
	bridge := req.Tokens[bridgeIdx]

	bridgePrice, err := req.Quote.lookup(bridgeSym)
	if err != nil {
		return nil, err
	}
	prices := make([]*big.Int, len(req.Tokens))
	for i, t := range req.Tokens {
		if prices[i], err = req.Quote.lookup(t.Symbol); err != nil {
			return nil, err
		}
	}

	priceScale := pow10(PriceDecimals)
	nativeUnit := pow10(NativeDecimals)
	bridgeUnit := pow10(int(bridge.Decimals))

	bridgeAmount := new(big.Int).Mul(req.TotalEth, priceScale)
	bridgeAmount.Mul(bridgeAmount, bridgeUnit)
	bridgeAmount.Div(bridgeAmount, bridgePrice)
	bridgeAmount.Div(bridgeAmount, nativeUnit)
	bridgeMinReturn := haircut(bridgeAmount, req.slippageBps())

	steps := make([]Step, 0, len(req.Tokens))
	path, err := enc.Path(nativeSym, bridgeSym)
	if err != nil {
		return nil, fmt.Errorf("route %s->%s: %w", nativeSym, bridgeSym, err)
	}
	call, err := enc.Convert(path, req.TotalEth, bridgeMinReturn)
	if err != nil {
		return nil, fmt.Errorf("encode %s purchase: %w", bridgeSym, err)
	}
	steps = append(steps, Step{
		Symbol:         bridgeSym,
		Target:         enc.Address(),
		Call:           call,
		Value:          new(big.Int).Set(req.TotalEth),
		ValueDecimals:  NativeDecimals,
		MinReturn:      bridgeMinReturn,
		ReturnDecimals: bridge.Decimals,
	})

	valuations := make([]*big.Int, len(req.Tokens))
	capitalization := new(big.Int)
	weightSum := new(big.Int)
	for i, t := range req.Tokens {
		valuations[i] = valuation(t, prices[i], priceScale, nativeUnit)
		capitalization.Add(capitalization, valuations[i])
		if t.Weight != nil {
			weightSum.Add(weightSum, t.Weight)
		}
	}

	for i, t := range req.Tokens {
		if i == bridgeIdx {
			continue
		}
		amount := new(big.Int)
		switch {
		case capitalization.Sign() != 0:
			amount.Mul(bridgeAmount, valuations[i])
			amount.Div(amount, capitalization)
		case weightSum.Sign() != 0 && t.Weight != nil:
			amount.Mul(bridgeAmount, t.Weight)
			amount.Div(amount, weightSum)
		}

		minReturn := new(big.Int).Mul(amount, bridgePrice)
		minReturn.Mul(minReturn, pow10(int(t.Decimals)))
		minReturn.Div(minReturn, bridgeUnit)
		minReturn.Div(minReturn, prices[i])
		minReturn = haircut(minReturn, req.slippageBps())

		path, err := enc.Path(bridgeSym, t.Symbol)
		if err != nil {
			return nil, fmt.Errorf("route %s->%s: %w", bridgeSym, t.Symbol, err)
		}
		call, err := enc.ClaimAndConvert(path, amount, minReturn)
		if err != nil {
			return nil, fmt.Errorf("encode %s purchase: %w", t.Symbol, err)
		}
		steps = append(steps, Step{
			Symbol:         t.Symbol,
			Target:         enc.Address(),
			Call:           call,
			Value:          amount,
			ValueDecimals:  bridge.Decimals,
			MinReturn:      minReturn,
			ReturnDecimals: t.Decimals,
		})
	}

	return &Result{
		BridgeAmount:    bridgeAmount,
		BridgeMinReturn: bridgeMinReturn,
		Capitalization:  capitalization,
		FirstPurchase:   req.TotalSupply == nil || req.TotalSupply.Sign() == 0,
		Plan:            steps,
		Packed:          Pack(steps),
	}, nil
}

// valuation is the holding's worth in wei: balance * price * 10^18 / 10^10 / 10^decimals.
func valuation(t TokenInfo, price, priceScale, nativeUnit *big.Int) *big.Int {
	v := new(big.Int)
	if t.Balance == nil || t.Balance.Sign() == 0 {
		return v
	}
	v.Mul(t.Balance, price)
	v.Mul(v, nativeUnit)
	v.Div(v, priceScale)
	v.Div(v, pow10(int(t.Decimals)))
	return v
}

func haircut(x *big.Int, bps int) *big.Int {
	out := new(big.Int).Mul(x, big.NewInt(int64(bpsDenominator-bps)))
	return out.Div(out, big.NewInt(bpsDenominator))
}
