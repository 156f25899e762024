package bancor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Route locates a symbol on the conversion network: its token and the converter that issues it.
type Route struct {
	Token     common.Address
	Converter common.Address
}

// Routes maps a token symbol to its Route.
type Routes map[string]Route

// DefaultRoutes returns the mainnet registry the basket UI shipped with.
func DefaultRoutes() Routes {
	r := Routes{}
	for sym, pair := range map[string][2]string{
		"ETH":   {"0xc0829421C1d260BD3cB3E0F06cfE2D52db2cE315", "0xc0829421C1d260BD3cB3E0F06cfE2D52db2cE315"},
		"BNT":   {"0x1F573D6Fb3F13d689FF844B4cE37794d79a7FF1C", "0x1F573D6Fb3F13d689FF844B4cE37794d79a7FF1C"},
		"AION":  {"0x4CEdA7906a5Ed2179785Cd3A40A69ee8bc99C466", "0x73fa2b855be96ab3c73f375b8ec777226efa3845"},
		"POA20": {"0x6758b7d441a9739b98552b373703d8d3d14f9e62", "0x564c07255afe5050d82c8816f78da13f2b17ac6d"},
		"GNO":   {"0x6810e776880c02933d47db1b9fc05908e5386b96", "0xd7eB9DB184DA9f099B84e2F86b1da1Fe6b305B3d"},
		"WINGS": {"0x667088b212ce3d06a1b553a7221E1fD19000d9aF", "0xa6ab3c8ae51962f4582db841de6b0a092041461e"},
		"STX":   {"0x006bea43baa3f7a6f765f14f10a1a1b08334ef45", "0x006bea43baa3f7a6f765f14f10a1a1b08334ef45"},
		"BAT":   {"0x0d8775f648430679a709e98d2b0cb6250d2887ef", "0x131da075a2832549128e93acc2b54174045232cf"},
		"STORM": {"0xd0a4b8946cb52f0661273bfbc6fd0e0c75fc6433", "0xcad4da66e00fdecabec137a24e12af8edf303a1d"},
		"J8T":   {"0x0d262e5dc4a06a0f1c90ce79c7a60c09dfc884e4", "0x8e00bacd7d8265d8f3f9d5b4fbd7f6b0b0c46f36"},
		"BBO":   {"0x84f7c44b6fed1080f647e354d552595be2cc602f", "0x980b4118dab781829df80d7912d70b059a280dad"},
	} {
		r[sym] = Route{Token: common.HexToAddress(pair[0]), Converter: common.HexToAddress(pair[1])}
	}
	return r
}

// ParseRoutes parses "SYM=token:converter" entries separated by commas or whitespace.
// A missing converter means the token converts itself (smart tokens such as BNT).
func ParseRoutes(s string) (Routes, error) {
	out := Routes{}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	for _, f := range fields {
		sym, addrs, ok := strings.Cut(f, "=")
		sym = strings.TrimSpace(sym)
		if !ok || sym == "" {
			return nil, fmt.Errorf("route %q: want SYM=token:converter", f)
		}
		tok, conv, hasConv := strings.Cut(addrs, ":")
		if !common.IsHexAddress(tok) {
			return nil, fmt.Errorf("route %s: bad token address %q", sym, tok)
		}
		if !hasConv {
			conv = tok
		}
		if !common.IsHexAddress(conv) {
			return nil, fmt.Errorf("route %s: bad converter address %q", sym, conv)
		}
		out[sym] = Route{Token: common.HexToAddress(tok), Converter: common.HexToAddress(conv)}
	}
	return out, nil
}

// Merge returns a copy of r with overrides applied on top.
func (r Routes) Merge(overrides Routes) Routes {
	out := make(Routes, len(r)+len(overrides))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Symbols lists the registered symbols in sorted order.
func (r Routes) Symbols() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
