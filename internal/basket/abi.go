package basket

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const multiTokenABI = `[
  {"type":"function","stateMutability":"view","name":"allTokens","inputs":[],"outputs":[{"name":"_tokens","type":"address[]"}]},
  {"type":"function","stateMutability":"view","name":"allWeights","inputs":[],"outputs":[{"name":"_weights","type":"uint256[]"}]},
  {"type":"function","stateMutability":"view","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const erc20ABI = `[
  {"type":"function","stateMutability":"view","name":"symbol","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","stateMutability":"view","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","stateMutability":"view","name":"balanceOf","inputs":[{"name":"_owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const networkABI = `[
  {"type":"function","stateMutability":"view","name":"allMultitokens","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","stateMutability":"view","name":"deployers","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

var (
	multiTokenContract abi.ABI
	erc20Contract      abi.ABI
	networkContract    abi.ABI
)

func init() {
	for _, c := range []struct {
		dst *abi.ABI
		src string
	}{
		{&multiTokenContract, multiTokenABI},
		{&erc20Contract, erc20ABI},
		{&networkContract, networkABI},
	} {
		parsed, err := abi.JSON(strings.NewReader(c.src))
		if err != nil {
			panic(fmt.Sprintf("basket: parse abi: %v", err))
		}
		*c.dst = parsed
	}
}

// read packs method, performs the eth_call and unpacks the single return value.
func read(ctx context.Context, c ethereum.ContractCaller, contract abi.ABI, to common.Address, method string, args ...any) (any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := callWithRetry(ctx, c, to, data)
	if err != nil {
		return nil, fmt.Errorf("%s() on %s: %s: %w", method, to.Hex(), classifyCallError(err), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s() on %s: %w", method, to.Hex(), ErrNoCode)
	}
	vals, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s() on %s: %w", method, to.Hex(), err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("%s() on %s: %d return values", method, to.Hex(), len(vals))
	}
	return vals[0], nil
}
