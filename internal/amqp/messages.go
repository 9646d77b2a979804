package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"moneyflow/internal/alerts"
)

// AlertMessage is the wire form of a limit exceeded alert.
type AlertMessage struct {
	ID            uuid.UUID `json:"id"`
	Category      string    `json:"category"`
	SpentMinor    int64     `json:"spent_minor"`
	LimitMinor    int64     `json:"limit_minor"`
	RawPercentage string    `json:"raw_percentage"`
	Unbounded     bool      `json:"unbounded,omitempty"`
	Revision      uint64    `json:"revision"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewAlertMessage converts an event, stamping it with now.
func NewAlertMessage(e alerts.Event, now time.Time) AlertMessage {
	return AlertMessage{
		ID:            e.ID,
		Category:      e.Category,
		SpentMinor:    e.Spent.Minor,
		LimitMinor:    e.Limit.Minor,
		RawPercentage: e.RawPercentage.String(),
		Unbounded:     e.Unbounded,
		Revision:      e.Revision,
		Timestamp:     now.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AlertMessageFromJSON decodes and checks a message body.
func AlertMessageFromJSON(data []byte) (AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return AlertMessage{}, err
	}
	if msg.ID == uuid.Nil {
		return AlertMessage{}, fmt.Errorf("alert message without id")
	}
	if msg.Category == "" {
		return AlertMessage{}, fmt.Errorf("alert message %s without category", msg.ID)
	}
	return msg, nil
}
