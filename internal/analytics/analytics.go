// Package analytics derives dashboard figures from a ledger snapshot.
//
// Every function is pure: inputs are read, never modified, and results are
// computed fresh on each call with decimal arithmetic and no intermediate
// rounding.
package analytics

import (
	"github.com/shopspring/decimal"

	"ledgerly/internal/core"
)

type (
	// Summary holds the balance cards of the dashboard.
	Summary struct {
		TotalCredit  decimal.Decimal `json:"totalCredit"`
		TotalDebit   decimal.Decimal `json:"totalDebit"`
		TotalBalance decimal.Decimal `json:"totalBalance"`
		Count        int             `json:"transactionCount"`
	}

	// CategoryTotal is one slice of the spending breakdown.
	CategoryTotal struct {
		Category core.Category   `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
	}

	// CategoryShare is a breakdown entry with its share of total spending.
	CategoryShare struct {
		CategoryTotal
		Percent decimal.Decimal `json:"percent"`
	}
)

// Summarize totals credits and debits. An empty snapshot yields zeros.
func Summarize(txs []core.Transaction) Summary {
	s := Summary{
		TotalCredit: decimal.Zero,
		TotalDebit:  decimal.Zero,
		Count:       len(txs),
	}
	for _, t := range txs {
		switch t.Type {
		case core.Credit:
			s.TotalCredit = s.TotalCredit.Add(t.Amount)
		case core.Debit:
			s.TotalDebit = s.TotalDebit.Add(t.Amount)
		}
	}
	s.TotalBalance = s.TotalCredit.Sub(s.TotalDebit)
	return s
}

// CategoryBreakdown sums DEBIT amounts per category in first-seen order.
// Credits never appear in the result.
func CategoryBreakdown(txs []core.Transaction) []CategoryTotal {
	index := make(map[core.Category]int)
	out := make([]CategoryTotal, 0)
	for _, t := range txs {
		if t.Type != core.Debit {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			index[t.Category] = len(out)
			out = append(out, CategoryTotal{Category: t.Category, Amount: t.Amount})
			continue
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	return out
}

// CategoryShares attaches each entry's percentage of the breakdown total,
// rounded to two places for display. Order is preserved.
func CategoryShares(breakdown []CategoryTotal) []CategoryShare {
	total := decimal.Zero
	for _, c := range breakdown {
		total = total.Add(c.Amount)
	}
	out := make([]CategoryShare, len(breakdown))
	hundred := decimal.NewFromInt(100)
	for i, c := range breakdown {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = c.Amount.Mul(hundred).Div(total).Round(2)
		}
		out[i] = CategoryShare{CategoryTotal: c, Percent: pct}
	}
	return out
}
