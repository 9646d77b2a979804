package core

import "github.com/shopspring/decimal"

// CategoryBreakdownEntry is the total spent in one expense category and its
// share of all expenses.
type CategoryBreakdownEntry struct {
	Category   string
	Amount     Money
	Percentage decimal.Decimal
}

// LedgerSummary aggregates a list of transactions.
type LedgerSummary struct {
	TotalIncome       Money
	TotalExpenses     Money
	NetBalance        Money
	CategoryBreakdown []CategoryBreakdownEntry
}
