package buyer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ligun0805/multibuy/internal/basket"
	"github.com/ligun0805/multibuy/internal/multibuyer"
	"github.com/ligun0805/multibuy/internal/payload"
)

// ErrAborted is returned when Confirm declines a purchase.
var ErrAborted = errors.New("purchase aborted")

type SnapshotReader interface {
	Snapshot(ctx context.Context, basket common.Address) (*basket.Snapshot, error)
}

type PriceSource interface {
	Quote(ctx context.Context, symbols []string, reference string) (payload.PriceQuote, error)
}

type Submitter interface {
	Describe(ctx context.Context, from common.Address, data []byte, value *big.Int) (*multibuyer.TxDescriptor, error)
	Send(ctx context.Context, key *ecdsa.PrivateKey, data []byte, value *big.Int) (*types.Transaction, error)
}

// Buyer wires the basket reader, price source, conversion encoder and forwarder together.
type Buyer struct {
	reader    SnapshotReader
	prices    PriceSource
	encoder   payload.Encoder
	forwarder Submitter
	log       log.Logger
}

func New(reader SnapshotReader, prices PriceSource, encoder payload.Encoder, forwarder Submitter, logger log.Logger) *Buyer {
	if logger == nil {
		logger = log.Root()
	}
	return &Buyer{reader: reader, prices: prices, encoder: encoder, forwarder: forwarder, log: logger}
}

// Run reads the basket, prices it, builds the proportional plan and then sends it
// (with a key), describes it (without one) or stops (PlanOnly). Nothing is submitted
// when any earlier stage fails.
func (b *Buyer) Run(ctx context.Context, p Params) (*Result, error) {
	if p.TotalEth == nil || p.TotalEth.Sign() <= 0 {
		return nil, &payload.InvalidInputError{Reason: "total ETH must be positive"}
	}
	native := p.NativeSymbol
	if native == "" {
		native = payload.DefaultNativeSymbol
	}
	bridge := p.BridgeSymbol
	if bridge == "" {
		bridge = payload.DefaultBridgeSymbol
	}

	p.logf("reading basket %s", p.Basket.Hex())
	snap, err := b.reader.Snapshot(ctx, p.Basket)
	if err != nil {
		return nil, fmt.Errorf("read basket: %w", err)
	}
	bridgeToken, ok := snap.Token(bridge)
	if !ok {
		return nil, &payload.InvalidInputError{Reason: fmt.Sprintf("basket does not contain bridge token %s", bridge)}
	}

	p.logf("fetching prices for %d tokens", len(snap.Tokens))
	quote, err := b.prices.Quote(ctx, snap.Symbols(), native)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	plan, err := payload.Build(payload.Request{
		TotalEth:     p.TotalEth,
		Tokens:       snap.Tokens,
		Quote:        quote,
		BridgeSymbol: bridge,
		NativeSymbol: native,
		SlippageBps:  p.SlippageBps,
		TotalSupply:  snap.TotalSupply,
	}, b.encoder)
	if err != nil {
		return nil, err
	}

	mode := multibuyer.ModeFor(snap.TotalSupply)
	data, err := multibuyer.Pack(multibuyer.BuyArgs{
		Mode:         mode,
		Basket:       p.Basket,
		ThroughToken: bridgeToken.Address,
		Packed:       plan.Packed,
	})
	if err != nil {
		return nil, fmt.Errorf("encode purchase: %w", err)
	}
	res := &Result{
		Snapshot: snap,
		Quote:    quote,
		Plan:     plan,
		Mode:     mode,
		CallData: data,
		Value:    new(big.Int).Set(p.TotalEth),
	}
	b.log.Info("Built purchase", "basket", p.Basket, "mode", mode, "steps", len(plan.Plan),
		"bridge", plan.BridgeAmount, "calldata", len(data))
	if p.PlanOnly {
		return res, nil
	}

	if p.Key != nil {
		if p.Confirm != nil && !p.Confirm(res) {
			return nil, ErrAborted
		}
		p.logf("sending %s", mode.Method())
		tx, err := b.forwarder.Send(ctx, p.Key, data, res.Value)
		if err != nil {
			return nil, fmt.Errorf("submit: %w", err)
		}
		res.Tx = tx
		return res, nil
	}
	p.logf("no signing key, describing %s", mode.Method())
	desc, err := b.forwarder.Describe(ctx, p.From, data, res.Value)
	if err != nil {
		return nil, fmt.Errorf("describe: %w", err)
	}
	res.Unsigned = desc
	return res, nil
}
