package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyflow/internal/core"
)

func TestShortDate(t *testing.T) {
	assert.Equal(t, "8 янв.", shortDate(core.NewDate(2026, 1, 8)))
	assert.Equal(t, "1 мая", shortDate(core.NewDate(2026, 5, 1)))
	assert.Equal(t, "31 дек.", shortDate(core.NewDate(2025, 12, 31)))
	assert.Equal(t, "", shortDate(core.Date{}))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("x: %w", core.ErrUnknownCategory)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(core.ErrInvalidAmount))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}

func TestAmountInput(t *testing.T) {
	tests := []struct {
		body    string
		want    int64
		wantErr bool
	}{
		{`{"limit": 15000}`, 1500000, false},
		{`{"limit": 12.5}`, 1250, false},
		{`{"limit": "15 000"}`, 1500000, false},
		{`{"limit": "1500,50"}`, 150050, false},
		{`{"limit": null}`, 0, true},
		{`{"limit": ""}`, 0, true},
		{`{"limit": "-5"}`, 0, true},
		{`{"limit": 0}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req limitRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			m, err := req.Limit.Money()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Minor)
		})
	}
}

func TestAmountInputRejectsObjects(t *testing.T) {
	var req limitRequest
	assert.Error(t, json.Unmarshal([]byte(`{"limit": {"x": 1}}`), &req))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "Продукты", sanitizeInput("  Про\x00дукты\x07 "))
}
