// Package core provides the domain types of the dashboard and money handling.
//
// Amounts are kept as signed integers in currency minor units so that sums
// never lose precision. Conversion to and from major units happens only at
// the edges: seed data, user input and display.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// MinorPerMajor is the number of minor units (kopecks) in one major unit.
const MinorPerMajor = 100

// Money is a signed amount in minor units.
type Money struct {
	Minor int64
}

// FromMajor converts a whole number of major units to Money.
func FromMajor(major int64) Money {
	return Money{Minor: major * MinorPerMajor}
}

func (m Money) Validate() error {
	if m.Minor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) IsZero() bool { return m.Minor == 0 }

func (m Money) Abs() Money {
	if m.Minor < 0 {
		return Money{Minor: -m.Minor}
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{Minor: m.Minor + o.Minor} }

func (m Money) Sub(o Money) Money { return Money{Minor: m.Minor - o.Minor} }

// Major returns the amount in major units for display purposes.
// Use Minor for calculations.
func (m Money) Major() float64 {
	return float64(m.Minor) / MinorPerMajor
}

// Format renders the amount the way ru-RU locale does: digit groups
// separated by spaces, comma decimals only when there are kopecks,
// followed by the currency symbol.
//
//	Money{12534000}.Format("₽") -> "125 340 ₽"
//	Money{-150050}.Format("₽")  -> "-1 500,50 ₽"
func (m Money) Format(currency string) string {
	minor := m.Minor
	neg := minor < 0
	if neg {
		minor = -minor
	}
	major := strconv.FormatInt(minor/MinorPerMajor, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range major {
		if i > 0 && (len(major)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if rem := minor % MinorPerMajor; rem != 0 {
		b.WriteByte(',')
		if rem < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(rem, 10))
	}
	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(currency)
	}
	return b.String()
}

// ParseDecimalToMinor converts a decimal string in major units to minor units.
//
// It accepts dot (12.34) and comma (12,34) decimal separators, spaces as
// thousands separators (15 000) and performs half-up rounding on the third
// decimal place. Only positive values are accepted; anything else returns
// ErrInvalidAmount.
//
// Examples:
//
//	ParseDecimalToMinor("12.34")  -> 1234, nil
//	ParseDecimalToMinor("15 000") -> 1500000, nil
//	ParseDecimalToMinor("12,346") -> 1235, nil (rounds up)
func ParseDecimalToMinor(s string) (int64, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / MinorPerMajor
	if iv > maxSafeInt64-1 {
		return 0, ErrInvalidAmount
	}
	// First two fractional digits, half-up on the third.
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	minor := iv*MinorPerMajor + frac
	if minor <= 0 {
		return 0, ErrInvalidAmount
	}
	return minor, nil
}

// ParseMoney is ParseDecimalToMinor returning Money.
func ParseMoney(s string) (Money, error) {
	minor, err := ParseDecimalToMinor(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Minor: minor}, nil
}
