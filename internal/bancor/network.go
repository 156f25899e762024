package bancor

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ABI of the BancorNetwork entry points used by basket purchases.
const networkABI = `[
  {"type":"function","stateMutability":"payable","name":"convert",
   "inputs":[{"name":"_path","type":"address[]"},{"name":"_amount","type":"uint256"},{"name":"_minReturn","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"nonpayable","name":"claimAndConvert",
   "inputs":[{"name":"_path","type":"address[]"},{"name":"_amount","type":"uint256"},{"name":"_minReturn","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	ErrUnknownRoute = errors.New("no conversion route")
	ErrAmountRange  = errors.New("amount outside uint256 range")
)

var parsedNetworkABI abi.ABI

func init() {
	var err error
	parsedNetworkABI, err = abi.JSON(strings.NewReader(networkABI))
	if err != nil {
		panic(fmt.Sprintf("bancor: parse network abi: %v", err))
	}
}

// Network encodes conversions against one BancorNetwork contract.
type Network struct {
	address common.Address
	routes  Routes
}

func NewNetwork(address common.Address, routes Routes) *Network {
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &Network{address: address, routes: routes}
}

func (n *Network) Address() common.Address { return n.address }

// Routes returns the registry backing this network.
func (n *Network) Routes() Routes { return n.routes }

// Path returns [token(from), converter(to), token(to)].
func (n *Network) Path(from, to string) ([]common.Address, error) {
	src, ok := n.routes[from]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrUnknownRoute, from)
	}
	dst, ok := n.routes[to]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrUnknownRoute, to)
	}
	return []common.Address{src.Token, dst.Converter, dst.Token}, nil
}

// Convert encodes convert(path, amount, minReturn); the caller attaches amount as ETH value.
func (n *Network) Convert(path []common.Address, amount, minReturn *big.Int) ([]byte, error) {
	return pack("convert", path, amount, minReturn)
}

// ClaimAndConvert encodes claimAndConvert(path, amount, minReturn), spending an approved balance.
func (n *Network) ClaimAndConvert(path []common.Address, amount, minReturn *big.Int) ([]byte, error) {
	return pack("claimAndConvert", path, amount, minReturn)
}

func pack(method string, path []common.Address, amount, minReturn *big.Int) ([]byte, error) {
	if len(path) < 3 || len(path)%2 == 0 {
		return nil, fmt.Errorf("%s: path of length %d", method, len(path))
	}
	for _, v := range []*big.Int{amount, minReturn} {
		if v == nil || v.Sign() < 0 {
			return nil, fmt.Errorf("%s: %w", method, ErrAmountRange)
		}
		if _, overflow := uint256.FromBig(v); overflow {
			return nil, fmt.Errorf("%s: %w", method, ErrAmountRange)
		}
	}
	return parsedNetworkABI.Pack(method, path, amount, minReturn)
}

// Conversion is a decoded convert/claimAndConvert call.
type Conversion struct {
	Method    string
	Path      []common.Address
	Amount    *big.Int
	MinReturn *big.Int
}

// Decode parses call-data produced by Convert or ClaimAndConvert.
func Decode(data []byte) (*Conversion, error) {
	if len(data) < 4 {
		return nil, errors.New("call data too short")
	}
	m, err := parsedNetworkABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", m.Name, err)
	}
	return &Conversion{
		Method:    m.Name,
		Path:      args[0].([]common.Address),
		Amount:    args[1].(*big.Int),
		MinReturn: args[2].(*big.Int),
	}, nil
}
