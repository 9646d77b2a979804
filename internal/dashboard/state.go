// Package dashboard owns the dashboard state and composes the ledger,
// limit and alert engines over it.
package dashboard

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"moneyflow/internal/alerts"
	"moneyflow/internal/core"
	"moneyflow/internal/ledger"
	"moneyflow/internal/limits"
	"moneyflow/internal/log"
	"moneyflow/internal/seed"
)

// QuickAmounts are the preset withdrawal amounts, in major units.
var QuickAmounts = []int64{500, 1000, 5000, 10000}

type (
	// Snapshot is a consistent read of the whole dashboard. Derived values
	// are recomputed from the sources on every call.
	Snapshot struct {
		Currency     string
		Accounts     []core.Account
		TotalBalance core.Money
		Transactions []core.Transaction
		Summary      core.LedgerSummary
		Statuses     []limits.Status
		QuickAmounts []core.Money
		Revision     uint64
	}

	// Update is the outcome of a successful limit change.
	Update struct {
		Statuses []limits.Status
		Alerts   []alerts.Event
		Revision uint64
	}

	// Receipt confirms a withdrawal request.
	Receipt struct {
		AccountID   string
		AccountName string
		Amount      core.Money
		Message     string
	}

	Option func(*State)
)

// State holds the accounts, transactions and limits of one dashboard along
// with the statuses last observed by the alert trigger. It is safe for
// concurrent use; mutations are serialized.
type State struct {
	mu       sync.Mutex
	currency string
	accounts []core.Account
	txs      []core.Transaction
	limits   []core.CategoryLimit
	// baseline is the status list the next mutation is compared against.
	baseline []limits.Status
	revision uint64
	notifier Notifier
}

// WithNotifier sets where alert events are delivered after a limit change.
func WithNotifier(n Notifier) Option {
	return func(s *State) {
		s.notifier = n
	}
}

// New validates data and computes the initial statuses. The initial
// evaluation only sets the baseline and never produces alerts.
func New(data seed.Data, opts ...Option) (*State, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dashboard data: %w", err)
	}
	currency := data.Currency
	if currency == "" {
		currency = seed.Currency
	}

	s := &State{
		currency: currency,
		accounts: slices.Clone(data.Accounts),
		txs:      slices.Clone(data.Transactions),
		limits:   slices.Clone(data.Limits),
		notifier: Nop,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.baseline = s.evaluate(s.limits)
	return s, nil
}

func (s *State) evaluate(lims []core.CategoryLimit) []limits.Status {
	summary := ledger.ComputeLedgerSummary(s.txs)
	return limits.Evaluate(summary.CategoryBreakdown, lims)
}

// Currency returns the currency symbol of every amount in the dashboard.
func (s *State) Currency() string {
	return s.currency
}

// Snapshot returns copies of the sources and freshly derived values.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := ledger.ComputeLedgerSummary(s.txs)
	quick := make([]core.Money, 0, len(QuickAmounts))
	for _, a := range QuickAmounts {
		quick = append(quick, core.FromMajor(a))
	}

	return Snapshot{
		Currency:     s.currency,
		Accounts:     slices.Clone(s.accounts),
		TotalBalance: ledger.TotalBalance(s.accounts),
		Transactions: slices.Clone(s.txs),
		Summary:      summary,
		Statuses:     limits.Evaluate(summary.CategoryBreakdown, s.limits),
		QuickAmounts: quick,
		Revision:     s.revision,
	}
}

// Revision is incremented on every successful mutation.
func (s *State) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// SetLimit replaces the limit of category. On error the state is left as
// it was. On success the new statuses are compared with the previous ones
// and every category that has just become exceeded yields an alert, which
// is also handed to the notifier. Notifier failures are logged only.
//
// Notifiers run after the lock is released, so concurrent updates may be
// delivered out of order. Each event carries the revision that produced it
// for consumers that need ordering.
func (s *State) SetLimit(ctx context.Context, category string, newLimit core.Money) (Update, error) {
	s.mu.Lock()
	next, err := limits.SetLimit(s.limits, category, newLimit)
	if err != nil {
		s.mu.Unlock()
		return Update{}, err
	}

	current := s.evaluate(next)
	events := alerts.Collect(alerts.Observe(s.baseline, current))

	s.limits = next
	s.baseline = current
	s.revision++
	for i := range events {
		events[i].Revision = s.revision
	}
	upd := Update{
		Statuses: slices.Clone(current),
		Alerts:   events,
		Revision: s.revision,
	}
	notifier := s.notifier
	s.mu.Unlock()

	sl := log.NewStructuredLogger(log.FromContext(ctx))
	sl.LogLimitUpdated(ctx, category, newLimit.Minor, len(events), upd.Revision)

	if len(events) > 0 {
		if err := notifier.Notify(ctx, events); err != nil {
			sl.LogError(ctx, "Failed to deliver limit alerts", err, log.ComponentAlerts, log.OpPublish,
				log.NewFields().With(log.FieldCategory, category).With(log.FieldAlertCount, len(events)))
		}
	}
	return upd, nil
}

// Withdraw acknowledges a cash withdrawal request. The account balance is
// not changed.
func (s *State) Withdraw(accountID string, amount core.Money) (Receipt, error) {
	if amount.Minor <= 0 {
		return Receipt{}, fmt.Errorf("withdraw: %w", core.ErrInvalidAmount)
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.accounts, func(a core.Account) bool { return a.ID == accountID })
	if idx < 0 {
		s.mu.Unlock()
		return Receipt{}, fmt.Errorf("withdraw from %q: %w", accountID, core.ErrUnknownAccount)
	}
	acc := s.accounts[idx]
	s.mu.Unlock()

	return Receipt{
		AccountID:   acc.ID,
		AccountName: acc.Name,
		Amount:      amount,
		Message:     fmt.Sprintf("Выдано %s из счёта %s", amount.Format(s.currency), acc.Name),
	}, nil
}
