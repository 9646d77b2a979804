package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Card    AccountKind = "card"
	Wallet  AccountKind = "wallet"
	Savings AccountKind = "savings"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	AccountKind     string
	TransactionType string

	Date struct {
		time.Time
	}

	// Account is a named balance. Icon and Style are display metadata the
	// engine never reads.
	Account struct {
		ID       string
		Name     string
		Balance  Money
		Currency string
		Kind     AccountKind
		Icon     string
		Style    string
	}

	// Transaction is a signed monetary event. The sign of Amount decides
	// whether it is income or expense; see Type.
	Transaction struct {
		ID       string
		Title    string
		Amount   Money
		Category string
		Date     Date
		Icon     string
	}

	// CategoryLimit is a spending ceiling for one category label.
	CategoryLimit struct {
		Category string
		Limit    Money
		Icon     string
		Color    string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (k AccountKind) IsValid() bool {
	switch k {
	case Card, Wallet, Savings:
		return true
	}
	return false
}

// Label returns the badge text shown on the account card.
func (k AccountKind) Label() string {
	switch k {
	case Card:
		return "Карта"
	case Wallet:
		return "Кошелёк"
	default:
		return "Счёт"
	}
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(a.Currency) == "" {
		return ErrEmptyCurrency
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, a.Kind)
	}
	return nil
}

// Type derives the transaction type from the amount sign. Zero amounts are
// rejected by Validate, so a valid transaction is always one or the other.
func (t Transaction) Type() TransactionType {
	if t.Amount.Minor > 0 {
		return Income
	}
	return Expense
}

func (t Transaction) IsExpense() bool { return t.Amount.Minor < 0 }

func (t Transaction) IsIncome() bool { return t.Amount.Minor > 0 }

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return fmt.Errorf("%w: title too long (max 200 characters)", ErrInvalidArgument)
	}
	if t.Amount.IsZero() {
		return ErrZeroAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// CheckType validates an externally supplied type tag against the amount
// sign. An empty tag is accepted and the sign decides.
func CheckType(amount Money, tag string) error {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil
	}
	switch TransactionType(tag) {
	case Income:
		if amount.Minor > 0 {
			return nil
		}
	case Expense:
		if amount.Minor < 0 {
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidArgument, tag)
	}
	return fmt.Errorf("%w: tag %q, amount %d", ErrTypeMismatch, tag, amount.Minor)
}

func (l CategoryLimit) Validate() error {
	if strings.TrimSpace(l.Category) == "" {
		return ErrEmptyCategory
	}
	return l.Limit.Validate()
}
