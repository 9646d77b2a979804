package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyflow/internal/dashboard"
	"moneyflow/internal/log"
	"moneyflow/internal/metrics"
	"moneyflow/internal/middleware/ratelimit"
	"moneyflow/internal/seed"
)

type testServer struct {
	*Server
	state   *dashboard.State
	metrics *metrics.Registry
}

func newTestServer(t *testing.T, modify func(*Options)) *testServer {
	t.Helper()
	logger := log.New(log.Config{Output: io.Discard, Format: log.FormatText})
	m := metrics.New()
	hub := NewHub(logger, seed.Currency, m)
	state, err := dashboard.New(seed.Default(), dashboard.WithNotifier(hub))
	require.NoError(t, err)

	opts := Options{
		Addr:    ":0",
		State:   state,
		Logger:  logger,
		Hub:     hub,
		Metrics: m,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: 100,
			Burst:             100,
		},
	}
	if modify != nil {
		modify(&opts)
	}
	srv, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return &testServer{Server: srv, state: state, metrics: m}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func limitPath(category string) string {
	return "/api/limits/" + url.PathEscape(category)
}

func TestNewServerRequiresStateAndLogger(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)

	state, err := dashboard.New(seed.Default())
	require.NoError(t, err)
	_, err = NewServer(Options{State: state})
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Ваши финансы под контролем")
	assert.Contains(t, body, "Общий баланс")
	assert.Contains(t, body, "Основная карта")
	assert.Contains(t, body, "История операций")
	assert.Contains(t, body, "8 янв.")
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = ts.do(t, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/static/app.js", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "max-age=3600")
	assert.Contains(t, rr.Body.String(), "/api/alerts/ws")
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[summaryResponse](t, rr)

	assert.Equal(t, uint64(0), resp.Revision)
	assert.Equal(t, int64(66454000), resp.TotalMinor)
	assert.Len(t, resp.Accounts, 3)
	assert.Equal(t, "Карта", resp.Accounts[0].KindLabel)
	assert.Equal(t, []int64{500, 1000, 5000, 10000}, resp.QuickAmounts)
	require.Len(t, resp.Breakdown, 3)
	assert.Equal(t, "Переводы", resp.Breakdown[0].Category)
	assert.Equal(t, int64(500000), resp.Breakdown[0].AmountMinor)
	assert.Equal(t, "53.7", resp.Breakdown[0].Percentage)
}

func TestTransactions(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[transactionsResponse](t, rr)

	require.Len(t, resp.Transactions, 5)
	first := resp.Transactions[0]
	assert.Equal(t, "income", first.Type)
	assert.True(t, strings.HasPrefix(first.Amount, "+"), first.Amount)
	assert.Equal(t, "2026-01-08", first.Date)
	assert.Equal(t, "8 янв.", first.DateLabel)
	assert.Equal(t, "expense", resp.Transactions[1].Type)
	assert.Equal(t, int64(-342000), resp.Transactions[1].AmountMinor)
}

func TestLimits(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/limits", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[limitsResponse](t, rr)

	require.Len(t, resp.Limits, 4)
	groceries := resp.Limits[0]
	assert.Equal(t, "Продукты", groceries.Category)
	assert.Equal(t, "ok", groceries.Classification)
	assert.Equal(t, int64(1158000), groceries.RemainingMinor)
	assert.Equal(t, "15000", groceries.LimitMajor)
}

func TestSetLimitFiresAlertOnce(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPut, limitPath("Переводы"), `{"limit": 4000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[limitUpdateResponse](t, rr)
	assert.Equal(t, uint64(1), resp.Revision)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "Переводы", resp.Alerts[0].Category)
	assert.Equal(t, "125.0", resp.Alerts[0].RawPercentage)
	assert.Contains(t, resp.Alerts[0].Message, "Переводы")

	rr = ts.do(t, http.MethodPut, limitPath("Переводы"), `{"limit": "3 000"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp = decode[limitUpdateResponse](t, rr)
	assert.Equal(t, uint64(2), resp.Revision)
	assert.Empty(t, resp.Alerts)
	assert.NotNil(t, resp.Alerts)
}

func TestSetLimitErrors(t *testing.T) {
	tests := []struct {
		name     string
		category string
		body     string
		want     int
	}{
		{"unknown category", "Путешествия", `{"limit": 100}`, http.StatusNotFound},
		{"zero limit", "Продукты", `{"limit": 0}`, http.StatusUnprocessableEntity},
		{"negative limit", "Продукты", `{"limit": -10}`, http.StatusUnprocessableEntity},
		{"not a number", "Продукты", `{"limit": "abc"}`, http.StatusUnprocessableEntity},
		{"missing limit", "Продукты", `{}`, http.StatusUnprocessableEntity},
		{"malformed json", "Продукты", `{"limit":`, http.StatusBadRequest},
		{"unknown field", "Продукты", `{"limit": 1, "extra": true}`, http.StatusBadRequest},
		{"trailing data", "Продукты", `{"limit": 1} {}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			rr := ts.do(t, http.MethodPut, limitPath(tt.category), tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rr).Error)
			assert.Equal(t, uint64(0), ts.state.Revision())
		})
	}
}

func TestWithdraw(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPost, "/api/withdrawals", `{"account_id": "1", "amount": "1500"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decode[receiptResponse](t, rr)
	assert.Equal(t, "Выдано 1 500 ₽ из счёта Основная карта", rec.Message)
	assert.Equal(t, int64(150000), rec.AmountMinor)

	// Balance is not debited.
	summary := decode[summaryResponse](t, ts.do(t, http.MethodGet, "/api/summary", ""))
	assert.Equal(t, int64(12534000), summary.Accounts[0].BalanceMinor)

	rr = ts.do(t, http.MethodPost, "/api/withdrawals", `{"account_id": "42", "amount": 10}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/withdrawals", `{"account_id": "1", "amount": 0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/withdrawals", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRenderedCacheFollowsRevision(t *testing.T) {
	ts := newTestServer(t, nil)

	first := ts.do(t, http.MethodGet, "/api/limits", "")
	second := ts.do(t, http.MethodGet, "/api/limits", "")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, uint64(1), ts.rendered.Stats().Hits)

	ts.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, 2, ts.rendered.Size())

	rr := ts.do(t, http.MethodPut, limitPath("Услуги"), `{"limit": 1000}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, ts.rendered.Size(), "stale revisions must be dropped")

	resp := decode[limitsResponse](t, ts.do(t, http.MethodGet, "/api/limits", ""))
	assert.Equal(t, uint64(1), resp.Revision)
	assert.Equal(t, "warning", resp.Limits[2].Classification)
	assert.Equal(t, 1, ts.rendered.Size())
}

func TestShutdownWithoutRun(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.Shutdown(ctx))
	require.NoError(t, ts.Shutdown(ctx))
}

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	ts := newTestServer(t, func(o *Options) {
		o.RateLimit = ratelimit.Config{RequestsPerSecond: 0.01, Burst: 1}
	})

	rr := ts.do(t, http.MethodPost, "/api/withdrawals", `{"account_id": "1", "amount": 500}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/withdrawals", `{"account_id": "1", "amount": 500}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	for range 3 {
		rr = ts.do(t, http.MethodGet, "/api/summary", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	failing := newTestServer(t, func(o *Options) {
		o.Ready = func(context.Context) error { return io.ErrUnexpectedEOF }
	})
	rr := failing.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.do(t, http.MethodPut, limitPath("Переводы"), `{"limit": 4000}`)
	ts.do(t, http.MethodPut, limitPath("Нет такой"), `{"limit": 4000}`)

	rr := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `moneyflow_limit_updates_total{result="ok"} 1`)
	assert.Contains(t, body, `moneyflow_limit_updates_total{result="error"} 1`)
	assert.Contains(t, body, `moneyflow_http_requests_total{method="PUT",route="PUT /api/limits/{category}",status="200"} 1`)
	assert.Contains(t, body, "moneyflow_alerts_fired_total")
}

func TestAlertsWebSocket(t *testing.T) {
	ts := newTestServer(t, nil)
	hs := httptest.NewServer(ts.Handler)
	defer hs.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/api/alerts/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return ts.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodPut, hs.URL+limitPath("Переводы"), strings.NewReader(`{"limit": 4000}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := hs.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg alertsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alerts", msg.Type)
	assert.Equal(t, uint64(1), msg.Revision)
	require.Len(t, msg.Alerts, 1)
	assert.Equal(t, "Переводы", msg.Alerts[0].Category)
	assert.Equal(t, uint64(1), msg.Alerts[0].Revision)
}
