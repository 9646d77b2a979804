package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"moneyflow/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 10

var errBadBody = errors.New("malformed request body")

// amountInput accepts either a JSON number or a string in major units, so
// both {"limit": 15000} and {"limit": "15 000"} parse.
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or string: %w", err)
	}
	*a = amountInput(n.String())
	return nil
}

// Money parses the input in major units.
func (a amountInput) Money() (core.Money, error) {
	s := sanitizeInput(string(a))
	if s == "" {
		return core.Money{}, fmt.Errorf("empty amount: %w", core.ErrInvalidAmount)
	}
	return core.ParseMoney(s)
}

type limitRequest struct {
	Limit amountInput `json:"limit"`
}

type withdrawalRequest struct {
	AccountID string      `json:"account_id"`
	Amount    amountInput `json:"amount"`
}

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}
