package multibuyer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/multibuy/internal/payload"
)

// MultiBuyer entry points that pull the through-token via approve.
const multiBuyerABI = `[
  {"type":"function","stateMutability":"payable","name":"buyOnApprove",
   "inputs":[{"name":"_mtkn","type":"address"},{"name":"_minimumReturn","type":"uint256"},{"name":"_throughToken","type":"address"},
             {"name":"_exchanges","type":"address[]"},{"name":"_datas","type":"bytes"},{"name":"_datasIndexes","type":"uint256[]"},
             {"name":"_values","type":"uint256[]"}],"outputs":[]},
  {"type":"function","stateMutability":"payable","name":"buyFirstTokensOnApprove",
   "inputs":[{"name":"_mtkn","type":"address"},{"name":"_throughToken","type":"address"},
             {"name":"_exchanges","type":"address[]"},{"name":"_datas","type":"bytes"},{"name":"_datasIndexes","type":"uint256[]"},
             {"name":"_values","type":"uint256[]"}],"outputs":[]}
]`

var parsedMultiBuyerABI abi.ABI

func init() {
	var err error
	parsedMultiBuyerABI, err = abi.JSON(strings.NewReader(multiBuyerABI))
	if err != nil {
		panic(fmt.Sprintf("multibuyer: parse abi: %v", err))
	}
}

// Mode selects the forwarder entry point.
type Mode int

const (
	// ModeTopUp buys into a basket that already has supply.
	ModeTopUp Mode = iota
	// ModeFirst mints the initial supply of an empty basket.
	ModeFirst
)

// ModeFor picks ModeFirst for an empty (or unknown) supply.
func ModeFor(totalSupply *big.Int) Mode {
	if totalSupply == nil || totalSupply.Sign() == 0 {
		return ModeFirst
	}
	return ModeTopUp
}

func (m Mode) Method() string {
	if m == ModeFirst {
		return "buyFirstTokensOnApprove"
	}
	return "buyOnApprove"
}

func (m Mode) String() string {
	if m == ModeFirst {
		return "first"
	}
	return "top-up"
}

// BuyArgs are the arguments of a forwarder purchase.
type BuyArgs struct {
	Mode   Mode
	Basket common.Address
	// ThroughToken is the bridge token the forwarder routes all conversions through.
	ThroughToken common.Address
	// MinimumReturn only applies to ModeTopUp.
	MinimumReturn *big.Int
	Packed        payload.PackedInstructions
}

// Pack encodes the forwarder call for args.
func Pack(args BuyArgs) ([]byte, error) {
	if err := args.Packed.Validate(); err != nil {
		return nil, fmt.Errorf("packed instructions: %w", err)
	}
	p := args.Packed
	if args.Mode == ModeFirst {
		return parsedMultiBuyerABI.Pack(args.Mode.Method(),
			args.Basket, args.ThroughToken, p.Targets, p.Data, p.Offsets, p.Values)
	}
	minimum := args.MinimumReturn
	if minimum == nil {
		minimum = new(big.Int)
	}
	return parsedMultiBuyerABI.Pack(args.Mode.Method(),
		args.Basket, minimum, args.ThroughToken, p.Targets, p.Data, p.Offsets, p.Values)
}

// Unpack decodes call-data produced by Pack.
func Unpack(data []byte) (*BuyArgs, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("call data too short")
	}
	m, err := parsedMultiBuyerABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	vals, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", m.Name, err)
	}
	out := &BuyArgs{Basket: vals[0].(common.Address), MinimumReturn: new(big.Int)}
	rest := vals[1:]
	if m.Name == ModeFirst.Method() {
		out.Mode = ModeFirst
	} else {
		out.Mode = ModeTopUp
		out.MinimumReturn = rest[0].(*big.Int)
		rest = rest[1:]
	}
	out.ThroughToken = rest[0].(common.Address)
	out.Packed = payload.PackedInstructions{
		Targets: rest[1].([]common.Address),
		Data:    rest[2].([]byte),
		Offsets: rest[3].([]*big.Int),
		Values:  rest[4].([]*big.Int),
	}
	return out, nil
}
