package seed

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"moneyflow/internal/core"
)

type (
	fileData struct {
		Currency     string            `yaml:"currency"`
		Accounts     []fileAccount     `yaml:"accounts"`
		Transactions []fileTransaction `yaml:"transactions"`
		Limits       []fileLimit       `yaml:"limits"`
	}

	fileAccount struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Balance  amount `yaml:"balance"`
		Currency string `yaml:"currency"`
		Kind     string `yaml:"kind"`
		Icon     string `yaml:"icon"`
		Style    string `yaml:"style"`
	}

	fileTransaction struct {
		ID       string `yaml:"id"`
		Title    string `yaml:"title"`
		Amount   amount `yaml:"amount"`
		Type     string `yaml:"type"`
		Category string `yaml:"category"`
		Date     string `yaml:"date"`
		Icon     string `yaml:"icon"`
	}

	fileLimit struct {
		Category string `yaml:"category"`
		Limit    amount `yaml:"limit"`
		Icon     string `yaml:"icon"`
		Color    string `yaml:"color"`
	}
)

// amount is a signed value in major units, written as a YAML number or
// string ("-3420", "1500.50").
type amount struct {
	core.Money
}

func (a *amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", node.Line)
	}
	raw := strings.ReplaceAll(strings.TrimSpace(node.Value), ",", ".")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q: %w", node.Line, node.Value, core.ErrInvalidArgument)
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return fmt.Errorf("line %d: amount %q has more than two decimals: %w", node.Line, node.Value, core.ErrInvalidArgument)
	}
	a.Money = core.Money{Minor: minor.IntPart()}
	return nil
}

// Load reads a YAML seed file. Amounts are in major units. A transaction may
// carry a type tag; it must agree with the amount sign. All accounts must
// share one currency.
func Load(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates seed YAML.
func Parse(raw []byte) (Data, error) {
	var fd fileData
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&fd); err != nil {
		return Data{}, fmt.Errorf("decode seed file: %w", err)
	}

	data := Data{Currency: fd.Currency}
	if data.Currency == "" {
		data.Currency = Currency
	}

	for i, fa := range fd.Accounts {
		acc := core.Account{
			ID:       fa.ID,
			Name:     fa.Name,
			Balance:  fa.Balance.Money,
			Currency: fa.Currency,
			Kind:     core.AccountKind(fa.Kind),
			Icon:     fa.Icon,
			Style:    fa.Style,
		}
		if acc.Currency == "" {
			acc.Currency = data.Currency
		}
		if acc.Currency != data.Currency {
			return Data{}, fmt.Errorf("account %d (%s): currency %q differs from %q: %w",
				i, acc.ID, acc.Currency, data.Currency, core.ErrInvalidArgument)
		}
		data.Accounts = append(data.Accounts, acc)
	}

	for i, ft := range fd.Transactions {
		if err := core.CheckType(ft.Amount.Money, ft.Type); err != nil {
			return Data{}, fmt.Errorf("transaction %d (%s): %w", i, ft.ID, err)
		}
		date, err := core.ParseDate(ft.Date)
		if err != nil {
			return Data{}, fmt.Errorf("transaction %d (%s): %w", i, ft.ID, err)
		}
		data.Transactions = append(data.Transactions, core.Transaction{
			ID:       ft.ID,
			Title:    ft.Title,
			Amount:   ft.Amount.Money,
			Category: ft.Category,
			Date:     date,
			Icon:     ft.Icon,
		})
	}

	for _, fl := range fd.Limits {
		data.Limits = append(data.Limits, core.CategoryLimit{
			Category: fl.Category,
			Limit:    fl.Limit.Money,
			Icon:     fl.Icon,
			Color:    fl.Color,
		})
	}

	if err := data.Validate(); err != nil {
		return Data{}, err
	}
	return data, nil
}

// Validate checks every entity and the uniqueness of identifiers.
func (d Data) Validate() error {
	ids := make(map[string]struct{}, len(d.Accounts))
	for _, a := range d.Accounts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("account %q: %w", a.ID, err)
		}
		if _, dup := ids[a.ID]; dup {
			return fmt.Errorf("account %q: duplicate id: %w", a.ID, core.ErrInvalidArgument)
		}
		ids[a.ID] = struct{}{}
	}

	ids = make(map[string]struct{}, len(d.Transactions))
	for _, t := range d.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %q: %w", t.ID, err)
		}
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("transaction %q: duplicate id: %w", t.ID, core.ErrInvalidArgument)
		}
		ids[t.ID] = struct{}{}
	}

	cats := make(map[string]struct{}, len(d.Limits))
	for _, l := range d.Limits {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("limit %q: %w", l.Category, err)
		}
		if _, dup := cats[l.Category]; dup {
			return fmt.Errorf("limit %q: duplicate category: %w", l.Category, core.ErrInvalidArgument)
		}
		cats[l.Category] = struct{}{}
	}
	return nil
}
