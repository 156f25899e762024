package payload

import (
	"bytes"
	"fmt"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEncoder renders calls as readable text so tests can assert on their contents.
type fakeEncoder struct {
	target  common.Address
	unknown string
}

func (f fakeEncoder) Address() common.Address { return f.target }

func (f fakeEncoder) Path(from, to string) ([]common.Address, error) {
	if to == f.unknown {
		return nil, fmt.Errorf("no route to %s", to)
	}
	return []common.Address{symAddr(from), symAddr("conv-" + to), symAddr(to)}, nil
}

func (f fakeEncoder) Convert(path []common.Address, amount, minReturn *big.Int) ([]byte, error) {
	return []byte(fmt.Sprintf("convert|%x|%s|%s", path[2], amount, minReturn)), nil
}

func (f fakeEncoder) ClaimAndConvert(path []common.Address, amount, minReturn *big.Int) ([]byte, error) {
	return []byte(fmt.Sprintf("claimAndConvert|%x|%s|%s", path[2], amount, minReturn)), nil
}

func symAddr(sym string) common.Address {
	return common.BytesToAddress([]byte(sym))
}

var (
	one    = big.NewInt(10_000_000_000)
	router = common.HexToAddress("0x0000000000000000000000000000000000000b4c")
)

func token(sym string, decimals uint8, balance, weight int64) TokenInfo {
	return TokenInfo{
		Address:  symAddr(sym),
		Symbol:   sym,
		Decimals: decimals,
		Balance:  big.NewInt(balance),
		Weight:   big.NewInt(weight),
	}
}

func exampleRequest() Request {
	return Request{
		TotalEth: big.NewInt(1000),
		Tokens: []TokenInfo{
			token("BNT", 18, 0, 0),
			token("A", 18, 0, 70),
			token("B", 18, 0, 30),
		},
		Quote:       PriceQuote{"BNT": one, "A": one, "B": one},
		SlippageBps: DefaultSlippageBps,
		TotalSupply: big.NewInt(0),
	}
}

func TestBuildWorkedExample(t *testing.T) {
	res, err := Build(exampleRequest(), fakeEncoder{target: router})
	require.NoError(t, err)

	assert.Equal(t, "1000", res.BridgeAmount.String())
	assert.Equal(t, "990", res.BridgeMinReturn.String())
	assert.Equal(t, "0", res.Capitalization.String())
	assert.True(t, res.FirstPurchase)

	require.Len(t, res.Plan, 3)
	first := res.Plan[0]
	assert.Equal(t, "BNT", first.Symbol)
	assert.Equal(t, "1000", first.Value.String())
	assert.Equal(t, uint8(NativeDecimals), first.ValueDecimals)
	assert.Equal(t, "convert|"+fmt.Sprintf("%x", symAddr("BNT"))+"|1000|990", string(first.Call))

	assert.Equal(t, "A", res.Plan[1].Symbol)
	assert.Equal(t, "700", res.Plan[1].Value.String())
	assert.Equal(t, "693", res.Plan[1].MinReturn.String())
	assert.Equal(t, "B", res.Plan[2].Symbol)
	assert.Equal(t, "300", res.Plan[2].Value.String())
	assert.Equal(t, "297", res.Plan[2].MinReturn.String())

	for _, s := range res.Plan {
		assert.Equal(t, router, s.Target)
	}
	require.NoError(t, res.Packed.Validate())
	assert.Equal(t, 3, res.Packed.Len())
	assert.Equal(t, []byte(res.Plan[2].Call), res.Packed.Call(2))
	assert.Equal(t, "1000", res.Packed.Values[0].String())
	assert.Equal(t, "700", res.Packed.Values[1].String())
}

func TestBuildValuationBranch(t *testing.T) {
	// A holds 2 tokens at 0.5 ETH, B holds 3 tokens at 1 ETH (6 decimals): 1 ETH vs 3 ETH.
	req := Request{
		TotalEth: big.NewInt(4_000_000),
		Tokens: []TokenInfo{
			{Symbol: "BNT", Decimals: 18, Balance: big.NewInt(0), Weight: big.NewInt(0)},
			{Symbol: "A", Decimals: 18, Balance: new(big.Int).Mul(big.NewInt(2), pow10(18)), Weight: big.NewInt(99)},
			{Symbol: "B", Decimals: 6, Balance: big.NewInt(3_000_000), Weight: big.NewInt(1)},
		},
		Quote: PriceQuote{
			"BNT": big.NewInt(5_000_000_000),
			"A":   big.NewInt(5_000_000_000),
			"B":   one,
		},
		SlippageBps: DefaultSlippageBps,
		TotalSupply: big.NewInt(10),
	}
	res, err := Build(req, fakeEncoder{})
	require.NoError(t, err)

	assert.False(t, res.FirstPurchase)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(4), pow10(18)).String(), res.Capitalization.String())
	assert.Equal(t, "8000000", res.BridgeAmount.String())
	// weights are ignored once capitalization is known
	assert.Equal(t, "2000000", res.Plan[1].Value.String())
	assert.Equal(t, "6000000", res.Plan[2].Value.String())
	// B: 6e6 BNT * 0.5 ETH * 10^6 / 10^18 / 1 ETH = 0 after truncation
	assert.Equal(t, "0", res.Plan[2].MinReturn.String())
	assert.Equal(t, "1980000", res.Plan[1].MinReturn.String())
}

func TestBuildFallbackConservesSpend(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(8)
		req := Request{
			TotalEth:    big.NewInt(1 + rng.Int63n(1_000_000_000_000)),
			Tokens:      []TokenInfo{token("BNT", 18, 0, 0)},
			Quote:       PriceQuote{"BNT": big.NewInt(1 + rng.Int63n(100_000_000_000))},
			SlippageBps: rng.Intn(bpsDenominator + 1),
		}
		for j := 0; j < n; j++ {
			sym := fmt.Sprintf("T%d", j)
			req.Tokens = append(req.Tokens, token(sym, uint8(rng.Intn(19)), 0, 1+rng.Int63n(1000)))
			req.Quote[sym] = big.NewInt(1 + rng.Int63n(100_000_000_000))
		}
		res, err := Build(req, fakeEncoder{})
		require.NoError(t, err)

		sum := new(big.Int)
		for _, s := range res.Plan[1:] {
			sum.Add(sum, s.Value)
		}
		loss := new(big.Int).Sub(res.BridgeAmount, sum)
		require.GreaterOrEqual(t, loss.Sign(), 0, "iteration %d over-spends", i)
		require.LessOrEqual(t, loss.Int64(), int64(n-1), "iteration %d", i)
		require.NoError(t, res.Packed.Validate())
	}
}

func TestBuildValuationNeverOverspends(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(8)
		req := Request{
			TotalEth:    big.NewInt(1 + rng.Int63n(1_000_000_000_000_000)),
			Tokens:      []TokenInfo{token("BNT", 18, rng.Int63n(1_000_000_000), rng.Int63n(10))},
			Quote:       PriceQuote{"BNT": big.NewInt(1 + rng.Int63n(100_000_000_000))},
			SlippageBps: DefaultSlippageBps,
			TotalSupply: big.NewInt(1 + rng.Int63n(1000)),
		}
		for j := 0; j < n; j++ {
			sym := fmt.Sprintf("T%d", j)
			req.Tokens = append(req.Tokens, token(sym, uint8(rng.Intn(19)), 1+rng.Int63n(1_000_000_000_000), rng.Int63n(1000)))
			req.Quote[sym] = big.NewInt(1 + rng.Int63n(100_000_000_000))
		}
		res, err := Build(req, fakeEncoder{})
		require.NoError(t, err)
		if res.Capitalization.Sign() == 0 {
			continue
		}
		sum := new(big.Int)
		for _, s := range res.Plan[1:] {
			sum.Add(sum, s.Value)
		}
		require.LessOrEqual(t, sum.Cmp(res.BridgeAmount), 0, "iteration %d", i)
	}
}

func TestBuildUnheldTokenGetsNothingWhenValued(t *testing.T) {
	// B has weight but no balance; a valued basket must not fall back to weights for it.
	req := Request{
		TotalEth: big.NewInt(1_000_000),
		Tokens: []TokenInfo{
			token("BNT", 18, 0, 0),
			token("A", 18, 1_000_000, 50),
			token("B", 18, 0, 50),
		},
		Quote:       PriceQuote{"BNT": one, "A": one, "B": one},
		TotalSupply: big.NewInt(1),
	}
	res, err := Build(req, fakeEncoder{})
	require.NoError(t, err)

	assert.Equal(t, "1000000", res.Capitalization.String())
	assert.False(t, res.FirstPurchase)
	assert.Equal(t, res.BridgeAmount.String(), res.Plan[1].Value.String())
	assert.Equal(t, "0", res.Plan[2].Value.String())
	assert.Equal(t, "0", res.Plan[2].MinReturn.String())
}

func TestBuildSlippageZeroValue(t *testing.T) {
	req := exampleRequest()
	req.SlippageBps = 0
	res, err := Build(req, fakeEncoder{})
	require.NoError(t, err)
	assert.Equal(t, "990", res.BridgeMinReturn.String())
	assert.Equal(t, "693", res.Plan[1].MinReturn.String())

	req.SlippageBps = NoSlippage
	res, err = Build(req, fakeEncoder{})
	require.NoError(t, err)
	assert.Equal(t, "1000", res.BridgeMinReturn.String())
	assert.Equal(t, "700", res.Plan[1].MinReturn.String())

	req.SlippageBps = 250
	res, err = Build(req, fakeEncoder{})
	require.NoError(t, err)
	assert.Equal(t, "975", res.BridgeMinReturn.String())
}

func TestBuildZeroWeightsDegenerate(t *testing.T) {
	req := exampleRequest()
	req.Tokens[1].Weight = big.NewInt(0)
	req.Tokens[2].Weight = nil

	res, err := Build(req, fakeEncoder{})
	require.NoError(t, err)
	require.Len(t, res.Plan, 3)
	for _, s := range res.Plan[1:] {
		assert.Zero(t, s.Value.Sign())
		assert.Zero(t, s.MinReturn.Sign())
	}
	assert.Equal(t, "1000", res.Plan[0].Value.String())
}

func TestBuildBridgeDecimalsScaleAmount(t *testing.T) {
	req := exampleRequest()
	req.Tokens[0].Decimals = 8
	req.TotalEth = new(big.Int).Mul(big.NewInt(3), pow10(18))
	req.Quote["BNT"] = big.NewInt(20_000_000_000) // 2 ETH

	res, err := Build(req, fakeEncoder{})
	require.NoError(t, err)
	assert.Equal(t, "150000000", res.BridgeAmount.String())
	assert.Equal(t, uint8(8), res.Plan[1].ValueDecimals)
	// 105000000 (8 decimals) at 2 ETH buys 2.1 A at 1 ETH
	assert.Equal(t, "105000000", res.Plan[1].Value.String())
	assert.Equal(t, new(big.Int).Mul(big.NewInt(2_079), pow10(15)).String(), res.Plan[1].MinReturn.String())
}

func TestBuildMissingPrice(t *testing.T) {
	for _, missing := range []string{"BNT", "B"} {
		t.Run(missing, func(t *testing.T) {
			req := exampleRequest()
			delete(req.Quote, missing)

			res, err := Build(req, fakeEncoder{})
			require.Nil(t, res)
			var mp *MissingPriceError
			require.ErrorAs(t, err, &mp)
			assert.Equal(t, missing, mp.Symbol)
		})
	}

	req := exampleRequest()
	req.Quote["A"] = big.NewInt(0)
	_, err := Build(req, fakeEncoder{})
	var mp *MissingPriceError
	require.ErrorAs(t, err, &mp)
	assert.Equal(t, "A", mp.Symbol)
}

func TestBuildInvalidInput(t *testing.T) {
	cases := map[string]func(*Request){
		"nil total":        func(r *Request) { r.TotalEth = nil },
		"zero total":       func(r *Request) { r.TotalEth = big.NewInt(0) },
		"negative total":   func(r *Request) { r.TotalEth = big.NewInt(-5) },
		"no tokens":        func(r *Request) { r.Tokens = nil },
		"no bridge":        func(r *Request) { r.Tokens = r.Tokens[1:] },
		"duplicate bridge": func(r *Request) { r.Tokens = append(r.Tokens, r.Tokens[0]) },
		"slippage high":    func(r *Request) { r.SlippageBps = 10_001 },
		"slippage low":     func(r *Request) { r.SlippageBps = NoSlippage - 1 },
		"negative weight":  func(r *Request) { r.Tokens[1].Weight = big.NewInt(-1) },
		"negative balance": func(r *Request) { r.Tokens[2].Balance = big.NewInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := exampleRequest()
			mutate(&req)
			res, err := Build(req, fakeEncoder{})
			require.Nil(t, res)
			var inv *InvalidInputError
			require.ErrorAs(t, err, &inv)
		})
	}

	_, err := Build(exampleRequest(), nil)
	var inv *InvalidInputError
	require.ErrorAs(t, err, &inv)
}

func TestBuildEncoderFailure(t *testing.T) {
	res, err := Build(exampleRequest(), fakeEncoder{unknown: "B"})
	require.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BNT->B")
}

func TestBuildCustomSymbols(t *testing.T) {
	req := exampleRequest()
	req.Tokens[0].Symbol = "HUB"
	req.Quote = PriceQuote{"HUB": one, "A": one, "B": one}
	req.BridgeSymbol = "HUB"
	req.NativeSymbol = "WETH"
	req.SlippageBps = NoSlippage

	res, err := Build(req, fakeEncoder{})
	require.NoError(t, err)
	assert.Equal(t, "HUB", res.Plan[0].Symbol)
	assert.Equal(t, "1000", res.BridgeMinReturn.String())
	assert.Equal(t, "700", res.Plan[1].MinReturn.String())
}

func TestBuildDeterministic(t *testing.T) {
	a, err := Build(exampleRequest(), fakeEncoder{target: router})
	require.NoError(t, err)
	b, err := Build(exampleRequest(), fakeEncoder{target: router})
	require.NoError(t, err)

	require.True(t, bytes.Equal(a.Packed.Data, b.Packed.Data))
	require.Equal(t, a.Packed, b.Packed)
}

func TestBuildDoesNotAliasInputs(t *testing.T) {
	req := exampleRequest()
	res, err := Build(req, fakeEncoder{})
	require.NoError(t, err)

	res.Plan[0].Value.SetInt64(1)
	res.Packed.Values[0].SetInt64(2)
	assert.Equal(t, "1000", req.TotalEth.String())
}

func TestPackedValidate(t *testing.T) {
	steps := []Step{
		{Target: symAddr("x"), Call: []byte{1, 2, 3}, Value: big.NewInt(1)},
		{Target: symAddr("y"), Call: nil, Value: nil},
		{Target: symAddr("z"), Call: []byte{4}, Value: big.NewInt(3)},
	}
	p := Pack(steps)
	require.NoError(t, p.Validate())
	assert.Equal(t, []*big.Int{big.NewInt(0), big.NewInt(3), big.NewInt(3), big.NewInt(4)}, p.Offsets)
	assert.Equal(t, []byte{1, 2, 3, 4}, p.Data)
	assert.Empty(t, p.Call(1))
	assert.Equal(t, "0", p.Values[1].String())

	empty := Pack(nil)
	require.NoError(t, empty.Validate())
	assert.Equal(t, 0, empty.Len())

	broken := Pack(steps)
	broken.Offsets[2] = big.NewInt(1)
	assert.Error(t, broken.Validate())

	short := Pack(steps)
	short.Data = short.Data[:2]
	assert.Error(t, short.Validate())

	short = Pack(steps)
	short.Values = short.Values[:1]
	assert.Error(t, short.Validate())

}
