package display

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ligun0805/multibuy/internal/payload"
)

const TokenExplorerURL = "https://etherscan.io/token/"

// FormatUnits renders v as a decimal with the given precision, trimming trailing zeros.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// FormatFixed renders v with exactly places fractional digits, rounding half away from zero.
func FormatFixed(v *big.Int, decimals uint8, places int32) string {
	if v == nil {
		v = new(big.Int)
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).StringFixed(places)
}

// FormatPrice renders a fixed-point quote price with every fractional digit, so
// price columns line up.
func FormatPrice(p *big.Int) string {
	return FormatFixed(p, payload.PriceDecimals, payload.PriceDecimals)
}

// TokenURL links a token's holdings of owner on the block explorer.
func TokenURL(token, owner common.Address) string {
	return TokenExplorerURL + token.Hex() + "?a=" + owner.Hex()
}

// ParseUnits converts a human amount such as "1.5" into base units.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("too many fractional digits for %d decimals", decimals)
	}
	return shifted.BigInt(), nil
}

// ShortAddress abbreviates an address for table cells.
func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:10] + "..."
}

// MaskHex hides the middle of a secret hex string.
func MaskHex(h string) string {
	h = strings.TrimSpace(h)
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "…" + h[len(h)-4:]
}
