// Package report renders a dashboard snapshot for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"moneyflow/internal/dashboard"
	"moneyflow/internal/limits"
)

const barWidth = 20

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	muted    lipgloss.Style
	income   lipgloss.Style
	expense  lipgloss.Style
	ok       lipgloss.Style
	warning  lipgloss.Style
	exceeded lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("171")),
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("241")),
		income:   r.NewStyle().Foreground(lipgloss.Color("42")),
		expense:  r.NewStyle().Foreground(lipgloss.Color("203")),
		ok:       r.NewStyle().Foreground(lipgloss.Color("36")),
		warning:  r.NewStyle().Foreground(lipgloss.Color("220")),
		exceeded: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// Render writes the balance, accounts, totals, category breakdown and
// limit progress of snap to w. Colours are used only when w is a terminal.
func Render(w io.Writer, snap dashboard.Snapshot) error {
	st := newStyles(lipgloss.NewRenderer(w))
	cur := snap.Currency

	var b strings.Builder
	b.WriteString(st.title.Render("MoneyFlow") + "\n")
	b.WriteString(st.muted.Render("Общий баланс") + "  " + st.header.Render(snap.TotalBalance.Format(cur)) + "\n\n")

	b.WriteString(st.header.Render("Счета") + "\n")
	for _, a := range snap.Accounts {
		fmt.Fprintf(&b, "  %-22s %-8s %16s\n", a.Name, a.Kind.Label(), a.Balance.Format(cur))
	}
	b.WriteString("\n")

	sum := snap.Summary
	fmt.Fprintf(&b, "  %-22s %s\n", "Доходы", st.income.Render("+"+sum.TotalIncome.Format(cur)))
	fmt.Fprintf(&b, "  %-22s %s\n", "Расходы", st.expense.Render("-"+sum.TotalExpenses.Format(cur)))
	fmt.Fprintf(&b, "  %-22s %s\n\n", "Итого", sum.NetBalance.Format(cur))

	b.WriteString(st.header.Render("Расходы по категориям") + "\n")
	if len(sum.CategoryBreakdown) == 0 {
		b.WriteString(st.muted.Render("  нет расходов") + "\n")
	}
	for _, e := range sum.CategoryBreakdown {
		fmt.Fprintf(&b, "  %-22s %s %5s%%  %s\n",
			e.Category, bar(e.Percentage), e.Percentage.StringFixed(1), e.Amount.Format(cur))
	}
	b.WriteString("\n")

	b.WriteString(st.header.Render("Лимиты") + "\n")
	for _, s := range snap.Statuses {
		style := st.ok
		switch s.Classification {
		case limits.Warning:
			style = st.warning
		case limits.Exceeded:
			style = st.exceeded
		}
		pct := s.RawPercentage.StringFixed(0) + "%"
		if s.Unbounded {
			pct = "∞"
		}
		fmt.Fprintf(&b, "  %-22s %s %6s  %s / %s  %s\n",
			s.Category,
			style.Render(bar(s.DisplayPercentage)),
			pct,
			s.Spent.Format(cur),
			s.Limit.Format(cur),
			style.Render(string(s.Classification)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// bar draws pct (0..100) as a fixed-width bar.
func bar(pct decimal.Decimal) string {
	filled := int(pct.Mul(decimal.NewFromInt(barWidth)).Div(decimal.NewFromInt(100)).IntPart())
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
