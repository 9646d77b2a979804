package http

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneyflow/internal/alerts"
	"moneyflow/internal/core"
	"moneyflow/internal/dashboard"
	"moneyflow/internal/limits"
)

// JSON views. Amounts are sent in minor units with a preformatted string
// next to them.
type (
	accountView struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Kind         string `json:"kind"`
		KindLabel    string `json:"kind_label"`
		BalanceMinor int64  `json:"balance_minor"`
		Balance      string `json:"balance"`
		Currency     string `json:"currency"`
		Icon         string `json:"icon"`
		Style        string `json:"style"`
	}

	transactionView struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		AmountMinor int64  `json:"amount_minor"`
		Amount      string `json:"amount"`
		Type        string `json:"type"`
		Category    string `json:"category"`
		Date        string `json:"date"`
		DateLabel   string `json:"date_label"`
		Icon        string `json:"icon"`
	}

	breakdownView struct {
		Category    string `json:"category"`
		AmountMinor int64  `json:"amount_minor"`
		Amount      string `json:"amount"`
		Percentage  string `json:"percentage"`
	}

	limitView struct {
		Category          string `json:"category"`
		LimitMinor        int64  `json:"limit_minor"`
		LimitMajor        string `json:"limit_major"`
		SpentMinor        int64  `json:"spent_minor"`
		RemainingMinor    int64  `json:"remaining_minor"`
		Limit             string `json:"limit"`
		Spent             string `json:"spent"`
		Remaining         string `json:"remaining"`
		RawPercentage     string `json:"raw_percentage"`
		DisplayPercentage string `json:"display_percentage"`
		Classification    string `json:"classification"`
		Unbounded         bool   `json:"unbounded,omitempty"`
		Icon              string `json:"icon"`
		Color             string `json:"color"`
	}

	alertView struct {
		ID            uuid.UUID `json:"id"`
		Category      string    `json:"category"`
		SpentMinor    int64     `json:"spent_minor"`
		LimitMinor    int64     `json:"limit_minor"`
		RawPercentage string    `json:"raw_percentage"`
		Unbounded     bool      `json:"unbounded,omitempty"`
		Revision      uint64    `json:"revision"`
		Message       string    `json:"message"`
	}

	summaryResponse struct {
		Revision      uint64          `json:"revision"`
		Currency      string          `json:"currency"`
		TotalBalance  string          `json:"total_balance"`
		TotalMinor    int64           `json:"total_balance_minor"`
		Accounts      []accountView   `json:"accounts"`
		TotalIncome   string          `json:"total_income"`
		TotalExpenses string          `json:"total_expenses"`
		NetBalance    string          `json:"net_balance"`
		Breakdown     []breakdownView `json:"category_breakdown"`
		QuickAmounts  []int64         `json:"quick_amounts"`
	}

	transactionsResponse struct {
		Revision     uint64            `json:"revision"`
		Transactions []transactionView `json:"transactions"`
	}

	limitsResponse struct {
		Revision uint64      `json:"revision"`
		Limits   []limitView `json:"limits"`
	}

	limitUpdateResponse struct {
		Revision uint64      `json:"revision"`
		Limits   []limitView `json:"limits"`
		Alerts   []alertView `json:"alerts"`
	}

	receiptResponse struct {
		AccountID   string `json:"account_id"`
		AccountName string `json:"account_name"`
		AmountMinor int64  `json:"amount_minor"`
		Message     string `json:"message"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func newAccountView(a core.Account) accountView {
	return accountView{
		ID:           a.ID,
		Name:         a.Name,
		Kind:         string(a.Kind),
		KindLabel:    a.Kind.Label(),
		BalanceMinor: a.Balance.Minor,
		Balance:      a.Balance.Format(a.Currency),
		Currency:     a.Currency,
		Icon:         a.Icon,
		Style:        a.Style,
	}
}

func newTransactionView(t core.Transaction, currency string) transactionView {
	amount := t.Amount.Format(currency)
	if t.IsIncome() {
		amount = "+" + amount
	}
	return transactionView{
		ID:          t.ID,
		Title:       t.Title,
		AmountMinor: t.Amount.Minor,
		Amount:      amount,
		Type:        string(t.Type()),
		Category:    t.Category,
		Date:        t.Date.String(),
		DateLabel:   shortDate(t.Date),
		Icon:        t.Icon,
	}
}

func newLimitView(s limits.Status, currency string) limitView {
	return limitView{
		Category:          s.Category,
		LimitMinor:        s.Limit.Minor,
		LimitMajor:        decimal.New(s.Limit.Minor, -2).String(),
		SpentMinor:        s.Spent.Minor,
		RemainingMinor:    s.Remaining.Minor,
		Limit:             s.Limit.Format(currency),
		Spent:             s.Spent.Format(currency),
		Remaining:         s.Remaining.Format(currency),
		RawPercentage:     s.RawPercentage.StringFixed(1),
		DisplayPercentage: s.DisplayPercentage.StringFixed(1),
		Classification:    string(s.Classification),
		Unbounded:         s.Unbounded,
		Icon:              s.Icon,
		Color:             s.Color,
	}
}

func newLimitViews(sts []limits.Status, currency string) []limitView {
	out := make([]limitView, 0, len(sts))
	for _, s := range sts {
		out = append(out, newLimitView(s, currency))
	}
	return out
}

func newAlertView(e alerts.Event, currency string) alertView {
	return alertView{
		ID:            e.ID,
		Category:      e.Category,
		SpentMinor:    e.Spent.Minor,
		LimitMinor:    e.Limit.Minor,
		RawPercentage: e.RawPercentage.StringFixed(1),
		Unbounded:     e.Unbounded,
		Revision:      e.Revision,
		Message: fmt.Sprintf("Превышен лимит «%s»: %s из %s",
			e.Category, e.Spent.Format(currency), e.Limit.Format(currency)),
	}
}

func newAlertViews(events []alerts.Event, currency string) []alertView {
	out := make([]alertView, 0, len(events))
	for _, e := range events {
		out = append(out, newAlertView(e, currency))
	}
	return out
}

func newSummaryResponse(snap dashboard.Snapshot) summaryResponse {
	cur := snap.Currency
	resp := summaryResponse{
		Revision:      snap.Revision,
		Currency:      cur,
		TotalBalance:  snap.TotalBalance.Format(cur),
		TotalMinor:    snap.TotalBalance.Minor,
		Accounts:      make([]accountView, 0, len(snap.Accounts)),
		TotalIncome:   snap.Summary.TotalIncome.Format(cur),
		TotalExpenses: snap.Summary.TotalExpenses.Format(cur),
		NetBalance:    snap.Summary.NetBalance.Format(cur),
		Breakdown:     make([]breakdownView, 0, len(snap.Summary.CategoryBreakdown)),
		QuickAmounts:  make([]int64, 0, len(snap.QuickAmounts)),
	}
	for _, a := range snap.Accounts {
		resp.Accounts = append(resp.Accounts, newAccountView(a))
	}
	for _, e := range snap.Summary.CategoryBreakdown {
		resp.Breakdown = append(resp.Breakdown, breakdownView{
			Category:    e.Category,
			AmountMinor: e.Amount.Minor,
			Amount:      e.Amount.Format(cur),
			Percentage:  e.Percentage.StringFixed(1),
		})
	}
	for _, q := range snap.QuickAmounts {
		resp.QuickAmounts = append(resp.QuickAmounts, q.Minor/core.MinorPerMajor)
	}
	return resp
}

func newTransactionsResponse(snap dashboard.Snapshot) transactionsResponse {
	resp := transactionsResponse{
		Revision:     snap.Revision,
		Transactions: make([]transactionView, 0, len(snap.Transactions)),
	}
	for _, t := range snap.Transactions {
		resp.Transactions = append(resp.Transactions, newTransactionView(t, snap.Currency))
	}
	return resp
}
