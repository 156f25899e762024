package multibuyer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

// Backend is the subset of *ethclient.Client the forwarder needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TxDescriptor is an unsigned forwarder transaction for signing elsewhere.
type TxDescriptor struct {
	To    common.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
}

type ForwarderConfig struct {
	// BaseFeeMul scales the latest base fee when computing the fee cap.
	BaseFeeMul int64
	// GasBufferPct pads the gas estimate of signed transactions.
	GasBufferPct int64
	Logger       log.Logger
}

// Forwarder submits purchases to a MultiBuyer contract.
type Forwarder struct {
	address common.Address
	backend Backend
	cfg     ForwarderConfig
	log     log.Logger
}

func NewForwarder(address common.Address, backend Backend, cfg ForwarderConfig) *Forwarder {
	if cfg.BaseFeeMul <= 0 {
		cfg.BaseFeeMul = 2
	}
	if cfg.GasBufferPct < 0 {
		cfg.GasBufferPct = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}
	return &Forwarder{address: address, backend: backend, cfg: cfg, log: logger}
}

func (f *Forwarder) Address() common.Address { return f.address }

// Describe estimates gas for the call as if sent by from and returns it unsigned.
func (f *Forwarder) Describe(ctx context.Context, from common.Address, data []byte, value *big.Int) (*TxDescriptor, error) {
	if value == nil {
		value = new(big.Int)
	}
	gas, err := f.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &f.address, Value: value, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	return &TxDescriptor{To: f.address, Value: new(big.Int).Set(value), Data: data, Gas: gas}, nil
}

// Send signs the call as an EIP-1559 transaction with key and broadcasts it.
func (f *Forwarder) Send(ctx context.Context, key *ecdsa.PrivateKey, data []byte, value *big.Int) (*types.Transaction, error) {
	if key == nil {
		return nil, fmt.Errorf("no signing key")
	}
	if value == nil {
		value = new(big.Int)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := f.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	desc, err := f.Describe(ctx, from, data, value)
	if err != nil {
		return nil, err
	}
	nonce, err := f.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	baseFee, err := latestBaseFee(ctx, f.backend)
	if err != nil {
		return nil, fmt.Errorf("base fee: %w", err)
	}
	tip, err := f.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("tip: %w", err)
	}

	gas := withBuffer(desc.Gas, f.cfg.GasBufferPct)
	signed, err := types.SignNewTx(key, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap(baseFee, tip, f.cfg.BaseFeeMul),
		To:        &f.address,
		Value:     desc.Value,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := f.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	f.log.Info("Submitted purchase", "hash", signed.Hash(), "from", from, "nonce", nonce, "gas", gas, "value", value)
	return signed, nil
}
