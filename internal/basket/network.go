package basket

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// DefaultDeployerSlots is how many deployers(i) slots are probed when listing a network.
const DefaultDeployerSlots = 10

// Network reads a MultiTokenNetwork registry.
type Network struct {
	caller  ethereum.ContractCaller
	address common.Address
}

func NewNetwork(caller ethereum.ContractCaller, address common.Address) *Network {
	return &Network{caller: caller, address: address}
}

func (n *Network) Address() common.Address { return n.address }

// Multitokens returns every basket registered on the network.
func (n *Network) Multitokens(ctx context.Context) ([]common.Address, error) {
	v, err := read(ctx, n.caller, networkContract, n.address, "allMultitokens")
	if err != nil {
		return nil, err
	}
	out, ok := v.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("allMultitokens(): unexpected %T", v)
	}
	return out, nil
}

// Deployers reads deployers(0..slots-1) in parallel and drops empty slots, keeping slot order.
func (n *Network) Deployers(ctx context.Context, slots int) ([]common.Address, error) {
	if slots <= 0 {
		slots = DefaultDeployerSlots
	}
	found := make([]common.Address, slots)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultMaxConcurrency)
	for i := range found {
		g.Go(func() error {
			v, err := read(gctx, n.caller, networkContract, n.address, "deployers", big.NewInt(int64(i)))
			if err != nil {
				return err
			}
			addr, ok := v.(common.Address)
			if !ok {
				return fmt.Errorf("deployers(%d): unexpected %T", i, v)
			}
			found[i] = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []common.Address
	for _, a := range found {
		if a != (common.Address{}) {
			out = append(out, a)
		}
	}
	return out, nil
}
