package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the engine and its callers. Every validation
// sentinel below wraps one of these two so errors.Is works on the category.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
)

var (
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be a positive number", ErrInvalidArgument)
	ErrZeroAmount      = fmt.Errorf("%w: transaction amount cannot be zero", ErrInvalidArgument)
	ErrTypeMismatch    = fmt.Errorf("%w: transaction type disagrees with amount sign", ErrInvalidArgument)
	ErrEmptyID         = fmt.Errorf("%w: empty id", ErrInvalidArgument)
	ErrEmptyName       = fmt.Errorf("%w: empty name", ErrInvalidArgument)
	ErrEmptyTitle      = fmt.Errorf("%w: empty title", ErrInvalidArgument)
	ErrEmptyCategory   = fmt.Errorf("%w: empty category", ErrInvalidArgument)
	ErrEmptyCurrency   = fmt.Errorf("%w: empty currency", ErrInvalidArgument)
	ErrInvalidKind     = fmt.Errorf("%w: unknown account kind", ErrInvalidArgument)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrInvalidArgument)
	ErrUnknownCategory = fmt.Errorf("%w: category", ErrNotFound)
	ErrUnknownAccount  = fmt.Errorf("%w: account", ErrNotFound)
)
