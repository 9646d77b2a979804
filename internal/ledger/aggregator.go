// Package ledger turns accounts and transactions into dashboard totals.
//
// Every function here is pure: results depend only on the arguments, inputs
// are never modified, and calling twice on the same input yields identical
// values.
package ledger

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"moneyflow/internal/core"
)

var hundred = decimal.NewFromInt(100)

// ComputeLedgerSummary sums income and expenses and groups expenses by
// category. The breakdown is sorted by amount descending; categories with
// equal amounts keep the order in which they first appear in txs.
func ComputeLedgerSummary(txs []core.Transaction) core.LedgerSummary {
	var (
		income   core.Money
		expenses core.Money
		order    []string
		byCat    = make(map[string]core.Money)
	)
	for _, tx := range txs {
		switch {
		case tx.Amount.Minor > 0:
			income = income.Add(tx.Amount)
		case tx.Amount.Minor < 0:
			spent := tx.Amount.Abs()
			expenses = expenses.Add(spent)
			if _, seen := byCat[tx.Category]; !seen {
				order = append(order, tx.Category)
			}
			byCat[tx.Category] = byCat[tx.Category].Add(spent)
		}
	}

	breakdown := make([]core.CategoryBreakdownEntry, 0, len(order))
	for _, cat := range order {
		amount := byCat[cat]
		breakdown = append(breakdown, core.CategoryBreakdownEntry{
			Category:   cat,
			Amount:     amount,
			Percentage: Percentage(amount, expenses),
		})
	}
	slices.SortStableFunc(breakdown, func(a, b core.CategoryBreakdownEntry) int {
		return cmp.Compare(b.Amount.Minor, a.Amount.Minor)
	})

	return core.LedgerSummary{
		TotalIncome:       income,
		TotalExpenses:     expenses,
		NetBalance:        income.Sub(expenses),
		CategoryBreakdown: breakdown,
	}
}

// Percentage returns part / whole × 100, or zero when whole is zero.
func Percentage(part, whole core.Money) decimal.Decimal {
	if whole.Minor == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part.Minor).Mul(hundred).Div(decimal.NewFromInt(whole.Minor))
}

// TotalBalance sums account balances. Accounts are expected to share one
// currency; the seed loader enforces that.
func TotalBalance(accounts []core.Account) core.Money {
	var total core.Money
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// SpentByCategory indexes a breakdown by category label.
func SpentByCategory(breakdown []core.CategoryBreakdownEntry) map[string]core.Money {
	out := make(map[string]core.Money, len(breakdown))
	for _, e := range breakdown {
		out[e.Category] = e.Amount
	}
	return out
}
