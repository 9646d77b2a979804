// Package alerts detects categories that cross into the exceeded state.
//
// Alerting is edge-triggered: an event is produced once per transition into
// limits.Exceeded, not on every evaluation while the category stays there.
package alerts

import (
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneyflow/internal/core"
	"moneyflow/internal/limits"
)

// namespace for event IDs; events for the same category/value pair share an ID.
var namespace = uuid.MustParse("5d1c3a52-8f0e-4c8e-9a61-0b7f3f6f2a10")

// Event reports that a category's spending went over its limit.
type Event struct {
	ID            uuid.UUID
	Category      string
	Spent         core.Money
	Limit         core.Money
	RawPercentage decimal.Decimal
	Unbounded     bool
	// Revision of the dashboard state the event was observed at. Zero until
	// the state owner stamps it.
	Revision uint64
}

// NewEvent builds the event for an exceeded status.
func NewEvent(st limits.Status) Event {
	key := fmt.Sprintf("%s|%d|%d", st.Category, st.Spent.Minor, st.Limit.Minor)
	return Event{
		ID:            uuid.NewSHA1(namespace, []byte(key)),
		Category:      st.Category,
		Spent:         st.Spent,
		Limit:         st.Limit,
		RawPercentage: st.RawPercentage,
		Unbounded:     st.Unbounded,
	}
}

// Transition reports whether moving from prev to cur must alert.
// Only the forward edge into Exceeded does.
func Transition(prev, cur limits.Classification) bool {
	return cur == limits.Exceeded && prev != limits.Exceeded
}

// Observe yields an Event for every category that is exceeded in current and
// was not exceeded in previous. A category missing from previous counts as
// not exceeded. The sequence is lazy and can be ranged over any number of
// times with the same result.
func Observe(previous, current []limits.Status) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		var prev map[string]limits.Classification
		for _, st := range current {
			if st.Classification != limits.Exceeded {
				continue
			}
			if prev == nil {
				prev = classifications(previous)
			}
			if !Transition(prev[st.Category], st.Classification) {
				continue
			}
			if !yield(NewEvent(st)) {
				return
			}
		}
	}
}

// Collect drains seq into a slice. It never returns nil.
func Collect(seq iter.Seq[Event]) []Event {
	out := []Event{}
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func classifications(sts []limits.Status) map[string]limits.Classification {
	m := make(map[string]limits.Classification, len(sts))
	for _, st := range sts {
		m[st.Category] = st.Classification
	}
	return m
}
