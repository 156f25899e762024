package display

import (
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"

	"github.com/ligun0805/multibuy/internal/payload"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

// TokenTable lists basket constituents with human-readable balances, indexed from 0
// as in the basket's allTokens().
func TokenTable(w io.Writer, basket common.Address, tokens []payload.TokenInfo) {
	t := newTable(w, "#", "Symbol", "Decimals", "Balance", "Weight", "Token")
	for i, tok := range tokens {
		weight := "0"
		if tok.Weight != nil {
			weight = tok.Weight.String()
		}
		t.Append([]string{
			fmt.Sprint(i),
			tok.Symbol,
			fmt.Sprint(tok.Decimals),
			FormatUnits(tok.Balance, tok.Decimals),
			weight,
			TokenURL(tok.Address, basket),
		})
	}
	t.Render()
}

// PlanTable lists the steps of a purchase in emission order.
func PlanTable(w io.Writer, plan []payload.Step) {
	t := newTable(w, "#", "Buys", "Target", "Spend", "Min return", "Call bytes")
	for i, s := range plan {
		t.Append([]string{
			fmt.Sprint(i),
			s.Symbol,
			ShortAddress(s.Target),
			FormatUnits(s.Value, s.ValueDecimals),
			FormatUnits(s.MinReturn, s.ReturnDecimals),
			fmt.Sprint(len(s.Call)),
		})
	}
	t.Render()
}

// QuoteTable lists quoted prices sorted by symbol.
func QuoteTable(w io.Writer, q payload.PriceQuote, reference string) {
	syms := q.Symbols()
	sort.Strings(syms)
	t := newTable(w, "Symbol", "Price ("+reference+")")
	for _, s := range syms {
		t.Append([]string{s, FormatPrice(q[s])})
	}
	t.Render()
}

// AddressList prints a titled, numbered list of addresses.
func AddressList(w io.Writer, title string, addrs []common.Address) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(addrs))
	for i, a := range addrs {
		fmt.Fprintf(w, "  %d. %s\n", i+1, a.Hex())
	}
}
