package dashboard

import (
	"context"
	"errors"

	"moneyflow/internal/alerts"
	"moneyflow/internal/log"
)

// Notifier delivers alert events produced by a limit change.
type Notifier interface {
	Notify(ctx context.Context, events []alerts.Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, events []alerts.Event) error

func (f NotifierFunc) Notify(ctx context.Context, events []alerts.Event) error {
	return f(ctx, events)
}

// Nop discards events.
var Nop Notifier = NotifierFunc(func(context.Context, []alerts.Event) error { return nil })

// Notifiers delivers to every notifier in order. All of them are tried;
// the returned error joins the individual failures.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, events []alerts.Event) error {
	var errs []error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes one warning per event.
type LogNotifier struct {
	Logger   *log.Logger
	Currency string
}

func (n LogNotifier) Notify(ctx context.Context, events []alerts.Event) error {
	for _, e := range events {
		n.Logger.WarnContext(ctx, "Limit exceeded",
			log.NewFields().
				WithAlert(e.ID.String(), e.Category).
				WithAmounts(e.Spent.Minor, e.Limit.Minor).
				With(log.FieldPercentage, e.RawPercentage.StringFixed(1)).
				With("spent", e.Spent.Format(n.currency())).
				ToSlice()...)
	}
	return nil
}

func (n LogNotifier) currency() string {
	if n.Currency == "" {
		return "₽"
	}
	return n.Currency
}

var (
	_ Notifier = Notifiers(nil)
	_ Notifier = LogNotifier{}
)
