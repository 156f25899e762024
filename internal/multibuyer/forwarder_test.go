package multibuyer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/multibuy/internal/payload"
)

type fakeBackend struct {
	chainID  *big.Int
	baseFee  *big.Int
	tip      *big.Int
	gas      uint64
	nonce    uint64
	gasErr   error
	sendErr  error
	lastCall ethereum.CallMsg
	sent     []*types.Transaction
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return b.chainID, nil }

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return b.tip, nil }

func (b *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.lastCall = msg
	return b.gas, b.gasErr
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

var (
	forwarderAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	basketAddr    = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	bntAddr       = common.HexToAddress("0x1F573D6Fb3F13d689FF844B4cE37794d79a7FF1C")
)

func samplePacked() payload.PackedInstructions {
	return payload.Pack([]payload.Step{
		{Target: common.HexToAddress("0xaa"), Call: []byte{1, 2, 3, 4, 5}, Value: big.NewInt(1000)},
		{Target: common.HexToAddress("0xaa"), Call: []byte{6, 7}, Value: big.NewInt(700)},
	})
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModeFirst, ModeFor(nil))
	assert.Equal(t, ModeFirst, ModeFor(big.NewInt(0)))
	assert.Equal(t, ModeTopUp, ModeFor(big.NewInt(1)))
	assert.Equal(t, "buyFirstTokensOnApprove", ModeFirst.Method())
	assert.Equal(t, "buyOnApprove", ModeTopUp.Method())
	assert.Equal(t, "first", ModeFirst.String())
}

func TestPackRoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeFirst, ModeTopUp} {
		t.Run(mode.String(), func(t *testing.T) {
			args := BuyArgs{Mode: mode, Basket: basketAddr, ThroughToken: bntAddr, Packed: samplePacked()}
			data, err := Pack(args)
			require.NoError(t, err)

			sig := "buyOnApprove(address,uint256,address,address[],bytes,uint256[],uint256[])"
			if mode == ModeFirst {
				sig = "buyFirstTokensOnApprove(address,address,address[],bytes,uint256[],uint256[])"
			}
			assert.Equal(t, crypto.Keccak256([]byte(sig))[:4], data[:4])

			got, err := Unpack(data)
			require.NoError(t, err)
			assert.Equal(t, mode, got.Mode)
			assert.Equal(t, basketAddr, got.Basket)
			assert.Equal(t, bntAddr, got.ThroughToken)
			assert.Equal(t, "0", got.MinimumReturn.String())
			assert.Equal(t, args.Packed.Data, got.Packed.Data)
			assert.Equal(t, args.Packed.Targets, got.Packed.Targets)
			require.Len(t, got.Packed.Offsets, 3)
			assert.Equal(t, "7", got.Packed.Offsets[2].String())
			assert.Equal(t, "700", got.Packed.Values[1].String())
		})
	}
}

func TestPackRejectsBrokenInstructions(t *testing.T) {
	p := samplePacked()
	p.Offsets = p.Offsets[:2]
	_, err := Pack(BuyArgs{Mode: ModeTopUp, Basket: basketAddr, ThroughToken: bntAddr, Packed: p})
	assert.Error(t, err)

	_, err = Unpack([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	b := &fakeBackend{gas: 321_000}
	f := NewForwarder(forwarderAddr, b, ForwarderConfig{})
	from := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	desc, err := f.Describe(context.Background(), from, []byte{9, 9}, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, forwarderAddr, desc.To)
	assert.Equal(t, "1000", desc.Value.String())
	assert.Equal(t, []byte{9, 9}, desc.Data)
	assert.Equal(t, uint64(321_000), desc.Gas)
	assert.Equal(t, from, b.lastCall.From)
	assert.Equal(t, forwarderAddr, *b.lastCall.To)

	b.gasErr = errors.New("execution reverted")
	_, err = f.Describe(context.Background(), from, nil, nil)
	assert.ErrorContains(t, err, "estimate gas")
}

func TestSend(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	b := &fakeBackend{
		chainID: big.NewInt(1),
		baseFee: big.NewInt(10_000_000_000),
		tip:     big.NewInt(1_000_000_000),
		gas:     200_000,
		nonce:   7,
	}
	f := NewForwarder(forwarderAddr, b, ForwarderConfig{BaseFeeMul: 2, GasBufferPct: 20})

	tx, err := f.Send(context.Background(), key, []byte{1, 2, 3}, big.NewInt(5000))
	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	assert.Equal(t, tx.Hash(), b.sent[0].Hash())

	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(240_000), tx.Gas())
	assert.Equal(t, "21000000000", tx.GasFeeCap().String())
	assert.Equal(t, "1000000000", tx.GasTipCap().String())
	assert.Equal(t, "5000", tx.Value().String())
	assert.Equal(t, forwarderAddr, *tx.To())
	assert.Equal(t, []byte{1, 2, 3}, tx.Data())

	sender, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)
	assert.Equal(t, sender, b.lastCall.From)

	raw, err := hexutil.Decode(TxAsHex(tx))
	require.NoError(t, err)
	var decoded types.Transaction
	require.NoError(t, decoded.UnmarshalBinary(raw))
	assert.Equal(t, tx.Hash(), decoded.Hash())
}

func TestSendFailures(t *testing.T) {
	key, _ := crypto.GenerateKey()
	f := NewForwarder(forwarderAddr, &fakeBackend{chainID: big.NewInt(1), gas: 1}, ForwarderConfig{})
	_, err := f.Send(context.Background(), key, nil, nil)
	assert.ErrorContains(t, err, "base fee")

	_, err = f.Send(context.Background(), nil, nil, nil)
	assert.Error(t, err)

	b := &fakeBackend{chainID: big.NewInt(1), baseFee: big.NewInt(1), tip: big.NewInt(1), gas: 1, sendErr: errors.New("nonce too low")}
	_, err = NewForwarder(forwarderAddr, b, ForwarderConfig{}).Send(context.Background(), key, nil, nil)
	assert.ErrorContains(t, err, "nonce too low")
	assert.Empty(t, b.sent)
}
