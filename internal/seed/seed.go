// Package seed provides the dashboard's sample data.
package seed

import (
	"moneyflow/internal/core"
)

// Currency is the symbol of the built-in sample data.
const Currency = "₽"

// Data holds the three source collections the dashboard is built from.
type Data struct {
	Currency     string
	Accounts     []core.Account
	Transactions []core.Transaction
	Limits       []core.CategoryLimit
}

// Default returns the built-in sample data. Every call returns fresh slices.
func Default() Data {
	return Data{
		Currency: Currency,
		Accounts: []core.Account{
			{ID: "1", Name: "Основная карта", Balance: core.FromMajor(125340), Currency: Currency, Kind: core.Card, Icon: "CreditCard", Style: "gradient-purple-pink"},
			{ID: "2", Name: "Накопительный счёт", Balance: core.FromMajor(450000), Currency: Currency, Kind: core.Savings, Icon: "PiggyBank", Style: "gradient-blue"},
			{ID: "3", Name: "Криптокошелёк", Balance: core.FromMajor(89200), Currency: Currency, Kind: core.Wallet, Icon: "Wallet", Style: "gradient-purple-pink"},
		},
		Transactions: []core.Transaction{
			{ID: "1", Title: "Поступление зарплаты", Amount: core.FromMajor(85000), Category: "Доход", Date: core.NewDate(2026, 1, 8), Icon: "TrendingUp"},
			{ID: "2", Title: "Супермаркет", Amount: core.FromMajor(-3420), Category: "Продукты", Date: core.NewDate(2026, 1, 8), Icon: "ShoppingCart"},
			{ID: "3", Title: "Перевод другу", Amount: core.FromMajor(-5000), Category: "Переводы", Date: core.NewDate(2026, 1, 7), Icon: "Send"},
			{ID: "4", Title: "Кэшбэк", Amount: core.FromMajor(1200), Category: "Возврат", Date: core.NewDate(2026, 1, 6), Icon: "Gift"},
			{ID: "5", Title: "Оплата интернета", Amount: core.FromMajor(-890), Category: "Услуги", Date: core.NewDate(2026, 1, 5), Icon: "Wifi"},
		},
		Limits: []core.CategoryLimit{
			{Category: "Продукты", Limit: core.FromMajor(15000), Icon: "ShoppingCart", Color: "purple"},
			{Category: "Переводы", Limit: core.FromMajor(10000), Icon: "Send", Color: "blue"},
			{Category: "Услуги", Limit: core.FromMajor(3000), Icon: "Wifi", Color: "pink"},
			{Category: "Развлечения", Limit: core.FromMajor(5000), Icon: "Gamepad2", Color: "orange"},
		},
	}
}

// FromConfig loads the seed file at path, or returns Default when path is empty.
func FromConfig(path string) (Data, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
