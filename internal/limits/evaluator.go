// Package limits evaluates per-category spending against user limits.
package limits

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"moneyflow/internal/core"
	"moneyflow/internal/ledger"
)

// Classification of spending relative to a limit.
type Classification string

const (
	OK       Classification = "ok"
	Warning  Classification = "warning"
	Exceeded Classification = "exceeded"
)

// WarningPercent is the share of the limit above which spending is a warning.
const WarningPercent = 80

var hundred = decimal.NewFromInt(100)

// Status is the evaluation of one CategoryLimit.
type Status struct {
	Category string
	Limit    core.Money
	Spent    core.Money
	// RawPercentage is Spent / Limit × 100 and decides Classification.
	RawPercentage decimal.Decimal
	// DisplayPercentage is RawPercentage capped at 100, for progress bars.
	DisplayPercentage decimal.Decimal
	Remaining         core.Money
	Classification    Classification
	// Unbounded is set when Limit is zero and something was spent, i.e.
	// RawPercentage is infinite. RawPercentage is left at zero in that case.
	Unbounded bool
	Icon      string
	Color     string
}

// Evaluate returns one Status per limit, in limit order.
func Evaluate(breakdown []core.CategoryBreakdownEntry, lims []core.CategoryLimit) []Status {
	spent := ledger.SpentByCategory(breakdown)
	out := make([]Status, 0, len(lims))
	for _, l := range lims {
		out = append(out, evaluateOne(l, spent[l.Category]))
	}
	return out
}

func evaluateOne(l core.CategoryLimit, spent core.Money) Status {
	st := Status{
		Category:  l.Category,
		Limit:     l.Limit,
		Spent:     spent,
		Remaining: l.Limit.Sub(spent),
		Icon:      l.Icon,
		Color:     l.Color,
	}
	if l.Limit.Minor <= 0 {
		st.RawPercentage = decimal.Zero
		st.DisplayPercentage = decimal.Zero
		st.Classification = OK
		if spent.Minor > 0 {
			st.Unbounded = true
			st.DisplayPercentage = hundred
			st.Classification = Exceeded
		}
		return st
	}
	st.RawPercentage = ledger.Percentage(spent, l.Limit)
	st.DisplayPercentage = decimal.Min(st.RawPercentage, hundred)
	st.Classification = Classify(spent, l.Limit)
	return st
}

// Classify compares spent against a positive limit using integer math so the
// 80% and 100% boundaries are exact. Spending the limit exactly is ok; warning
// covers only the range strictly between 80% and 100%.
func Classify(spent, limit core.Money) Classification {
	switch {
	case spent.Minor > limit.Minor:
		return Exceeded
	case spent.Minor == limit.Minor:
		return OK
	case spent.Minor*100 > limit.Minor*WarningPercent:
		return Warning
	default:
		return OK
	}
}

// SetLimit returns a copy of lims with the limit for category replaced.
// lims itself is never modified, so a failed update leaves the caller's
// state untouched. An unknown category is an error rather than a no-op.
func SetLimit(lims []core.CategoryLimit, category string, newLimit core.Money) ([]core.CategoryLimit, error) {
	if newLimit.Minor <= 0 {
		return nil, fmt.Errorf("set limit for %q: %w", category, core.ErrInvalidAmount)
	}
	idx := indexOf(lims, category)
	if idx < 0 {
		return nil, fmt.Errorf("set limit for %q: %w", category, core.ErrUnknownCategory)
	}
	out := make([]core.CategoryLimit, len(lims))
	copy(out, lims)
	out[idx].Limit = newLimit
	return out, nil
}

// ParseLimit parses user input in major units ("15000", "15 000", "1500,50").
func ParseLimit(input string) (core.Money, error) {
	m, err := core.ParseMoney(input)
	if err != nil {
		return core.Money{}, fmt.Errorf("parse limit %q: %w", strings.TrimSpace(input), err)
	}
	return m, nil
}

func indexOf(lims []core.CategoryLimit, category string) int {
	for i, l := range lims {
		if l.Category == category {
			return i
		}
	}
	return -1
}
