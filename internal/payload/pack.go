package payload

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pack concatenates the step calls into forwarder instructions. Offsets start at zero
// and grow by each call's length, so Offsets[i]..Offsets[i+1] delimits call i in Data.
func Pack(steps []Step) PackedInstructions {
	p := PackedInstructions{
		Targets: make([]common.Address, 0, len(steps)),
		Offsets: make([]*big.Int, 1, len(steps)+1),
		Values:  make([]*big.Int, 0, len(steps)),
	}
	p.Offsets[0] = new(big.Int)
	size := 0
	for _, s := range steps {
		size += len(s.Call)
	}
	p.Data = make([]byte, 0, size)
	for _, s := range steps {
		p.Targets = append(p.Targets, s.Target)
		p.Data = append(p.Data, s.Call...)
		p.Offsets = append(p.Offsets, big.NewInt(int64(len(p.Data))))
		v := new(big.Int)
		if s.Value != nil {
			v.Set(s.Value)
		}
		p.Values = append(p.Values, v)
	}
	return p
}

// Call returns the call-data of instruction i.
func (p PackedInstructions) Call(i int) []byte {
	return p.Data[p.Offsets[i].Int64():p.Offsets[i+1].Int64()]
}

// Len is the number of packed calls.
func (p PackedInstructions) Len() int { return len(p.Targets) }

// Validate checks the layout invariants the forwarder relies on.
func (p PackedInstructions) Validate() error {
	if len(p.Offsets) == 0 || p.Offsets[0] == nil || p.Offsets[0].Sign() != 0 {
		return errors.New("offsets must start at zero")
	}
	if len(p.Targets) != len(p.Values) || len(p.Offsets) != len(p.Targets)+1 {
		return fmt.Errorf("length mismatch: %d targets, %d values, %d offsets",
			len(p.Targets), len(p.Values), len(p.Offsets))
	}
	for i := 1; i < len(p.Offsets); i++ {
		if p.Offsets[i] == nil || p.Offsets[i].Cmp(p.Offsets[i-1]) < 0 {
			return fmt.Errorf("offset %d is not monotone", i)
		}
	}
	if last := p.Offsets[len(p.Offsets)-1]; last.Cmp(big.NewInt(int64(len(p.Data)))) != 0 {
		return fmt.Errorf("final offset %s != data length %d", last, len(p.Data))
	}
	return nil
}
