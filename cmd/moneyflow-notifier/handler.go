package main

import (
	"context"

	"moneyflow/internal/amqp"
	"moneyflow/internal/cache"
	"moneyflow/internal/log"
)

// alertHandler logs each alert once. Alert IDs are derived from the
// category and amounts, so a redelivered or republished alert has the same
// ID and is acknowledged without being reported again.
type alertHandler struct {
	logger *log.Logger
	seen   cache.Cache[struct{}]
}

func newAlertHandler(logger *log.Logger, seen cache.Cache[struct{}]) *alertHandler {
	return &alertHandler{logger: logger, seen: seen}
}

func (h *alertHandler) Handle(ctx context.Context, msg amqp.AlertMessage) error {
	id := msg.ID.String()
	fields := log.NewFields().
		WithOperation(log.OpConsume).
		WithAlert(id, msg.Category).
		WithAmounts(msg.SpentMinor, msg.LimitMinor).
		With(log.FieldPercentage, msg.RawPercentage).
		With(log.FieldRevision, msg.Revision)

	if _, dup := h.seen.Get(id); dup {
		h.logger.DebugContext(ctx, "Duplicate limit alert skipped", fields.ToSlice()...)
		return nil
	}
	h.seen.Set(id, struct{}{})

	if msg.Unbounded {
		fields = fields.With("unbounded", true)
	}
	h.logger.WarnContext(ctx, "Limit exceeded", fields.With("published_at", msg.Timestamp).ToSlice()...)
	return nil
}
