package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"moneyflow/internal/dashboard"
	"moneyflow/internal/log"
	"moneyflow/internal/metrics"
)

// dashboardPage is the view model of dashboard.html.
type dashboardPage struct {
	Title        string
	Summary      summaryResponse
	Transactions []transactionView
	Limits       []limitView
}

func newDashboardPage(snap dashboard.Snapshot) dashboardPage {
	return dashboardPage{
		Title:        "Ваши финансы под контролем",
		Summary:      newSummaryResponse(snap),
		Transactions: newTransactionsResponse(snap).Transactions,
		Limits:       newLimitViews(snap.Statuses, snap.Currency),
	}
}

// cached returns the rendering stored under name for the current revision,
// producing and storing it on a miss.
func (s *Server) cached(name string, render func(dashboard.Snapshot) ([]byte, error)) ([]byte, error) {
	if b, ok := s.rendered.Get(fmt.Sprintf("%s:%d", name, s.state.Revision())); ok {
		return b, nil
	}
	snap := s.state.Snapshot()
	b, err := render(snap)
	if err != nil {
		return nil, err
	}
	s.rendered.Set(fmt.Sprintf("%s:%d", name, snap.Revision), b)
	return b, nil
}

func jsonRenderer[T any](view func(dashboard.Snapshot) T) func(dashboard.Snapshot) ([]byte, error) {
	return func(snap dashboard.Snapshot) ([]byte, error) {
		b, err := json.Marshal(view(snap))
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}
}

func (s *Server) serveCachedJSON(w http.ResponseWriter, r *http.Request, name string, render func(dashboard.Snapshot) ([]byte, error)) {
	b, err := s.cached(name, render)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Render failed",
			log.FieldOperation, log.OpRender, "view", name, log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := s.cached("dashboard", func(snap dashboard.Snapshot) ([]byte, error) {
		var buf bytes.Buffer
		if err := s.templates.ExecuteTemplate(&buf, "dashboard.html", newDashboardPage(snap)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Template render failed",
			log.FieldComponent, log.ComponentTemplate, log.FieldOperation, log.OpRender, log.FieldError, err.Error())
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, r, "summary", jsonRenderer(newSummaryResponse))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, r, "transactions", jsonRenderer(newTransactionsResponse))
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, r, "limits", jsonRenderer(func(snap dashboard.Snapshot) limitsResponse {
		return limitsResponse{Revision: snap.Revision, Limits: newLimitViews(snap.Statuses, snap.Currency)}
	}))
}

func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := sanitizeInput(r.PathValue("category"))

	var req limitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	upd, err := s.setLimit(ctx, category, req.Limit)
	s.countLimitUpdate(err, upd)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Limit update rejected",
			log.FieldOperation, log.OpUpdate,
			log.FieldCategory, category,
			log.FieldError, err.Error())
		writeError(w, statusFor(err), err.Error())
		return
	}
	// Views rendered for earlier revisions can no longer be served.
	s.rendered.Purge()

	cur := s.state.Currency()
	writeJSON(w, http.StatusOK, limitUpdateResponse{
		Revision: upd.Revision,
		Limits:   newLimitViews(upd.Statuses, cur),
		Alerts:   newAlertViews(upd.Alerts, cur),
	})
}

func (s *Server) setLimit(ctx context.Context, category string, in amountInput) (dashboard.Update, error) {
	amount, err := in.Money()
	if err != nil {
		return dashboard.Update{}, err
	}
	return s.state.SetLimit(ctx, category, amount)
}

func (s *Server) countLimitUpdate(err error, upd dashboard.Update) {
	if s.metrics == nil {
		return
	}
	s.metrics.LimitUpdates.WithLabelValues(metrics.Result(err)).Inc()
	for _, e := range upd.Alerts {
		s.metrics.AlertsFired.WithLabelValues(e.Category).Inc()
	}
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req withdrawalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := req.Amount.Money()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	rec, err := s.state.Withdraw(sanitizeInput(req.AccountID), amount)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Withdrawal rejected",
			log.FieldOperation, log.OpWithdraw,
			log.FieldAccountID, req.AccountID,
			log.FieldAmountMinor, amount.Minor,
			log.FieldError, err.Error())
		writeError(w, statusFor(err), err.Error())
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Withdrawal requested",
		log.FieldOperation, log.OpWithdraw,
		log.FieldAccountID, rec.AccountID,
		log.FieldAmountMinor, rec.Amount.Minor)
	writeJSON(w, http.StatusOK, receiptResponse{
		AccountID:   rec.AccountID,
		AccountName: rec.AccountName,
		AmountMinor: rec.Amount.Minor,
		Message:     rec.Message,
	})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{"templates": "ok"}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["dependencies"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["dependencies"] = "ok"
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":   status,
		"revision": s.state.Revision(),
		"checks":   checks,
	})
}
