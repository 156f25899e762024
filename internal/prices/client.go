package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/shopspring/decimal"

	"github.com/ligun0805/multibuy/internal/payload"
)

// DefaultEndpoint is the Bancor currencies listing, ordered by liquidity.
const DefaultEndpoint = "https://api.bancor.network/0.1/currencies/tokens?limit=100&skip=0&fromCurrencyCode=ETH&includeTotal=false&orderBy=liquidityDepth&sortOrder=desc"

var ErrEmptyListing = errors.New("price listing is empty")

type currenciesResponse struct {
	Data struct {
		Currencies struct {
			Page []currency `json:"page"`
		} `json:"currencies"`
	} `json:"data"`
}

type currency struct {
	Code  string              `json:"code"`
	Price decimal.NullDecimal `json:"price"`
}

// Client fetches token prices denominated in a reference currency.
type Client struct {
	endpoint string
	http     *http.Client
	log      log.Logger
}

func NewClient(endpoint string, timeout time.Duration, logger log.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: timeout}, log: logger}
}

func (c *Client) doGET(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "multibuy/prices")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("http %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(target)
}

func (c *Client) listingURL(reference string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("price endpoint: %w", err)
	}
	if reference != "" {
		q := u.Query()
		q.Set("fromCurrencyCode", reference)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Quote returns prices for symbols (every listed symbol when symbols is empty), scaled
// by 10^PriceDecimals and truncated. The reference symbol is always quoted at exactly 1.
// Symbols the listing does not carry are left out; the builder reports them.
func (c *Client) Quote(ctx context.Context, symbols []string, reference string) (payload.PriceQuote, error) {
	u, err := c.listingURL(reference)
	if err != nil {
		return nil, err
	}
	var raw currenciesResponse
	if err := c.doGET(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	page := raw.Data.Currencies.Page
	if len(page) == 0 {
		return nil, ErrEmptyListing
	}

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	out := payload.PriceQuote{}
	for _, cur := range page {
		if len(want) > 0 && !want[cur.Code] {
			continue
		}
		if _, seen := out[cur.Code]; seen {
			continue // listing is ordered by liquidity, keep the deepest market
		}
		if !cur.Price.Valid {
			continue
		}
		scaled := Scale(cur.Price.Decimal)
		if scaled.Sign() <= 0 {
			c.log.Debug("Skipping unusable price", "symbol", cur.Code, "price", cur.Price.Decimal)
			continue
		}
		out[cur.Code] = scaled
	}
	if reference != "" {
		out[reference] = Scale(decimal.NewFromInt(1))
	}
	for s := range want {
		if _, ok := out[s]; !ok {
			c.log.Warn("No price listed", "symbol", s, "reference", reference)
		}
	}
	return out, nil
}

// Scale converts a decimal price to the 10^PriceDecimals fixed-point form, truncating.
func Scale(price decimal.Decimal) *big.Int {
	return price.Shift(payload.PriceDecimals).Truncate(0).BigInt()
}
