package orders

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/google/uuid"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderApproved  = "OrderApproved"
	EventOrderRejected  = "OrderRejected"
	EventOrderCancelled = "OrderCancelled"
)

// Reason codes untuk OrderRejected / OrderCancelled.
const (
	ReasonOutOfStock       = "OUT_OF_STOCK"
	ReasonRejectedByAdmin  = "REJECTED_BY_ADMIN"
	ReasonCancelledByUser  = "CANCELLED_BY_USER"
	ReasonCancelledByAdmin = "CANCELLED_BY_ADMIN"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "roti-bot"
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderEventPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	ProductKey string `json:"product_key"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int    `json:"unit_price"`
	Total      int    `json:"total"`
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// EventPublisher menerima event lifecycle order. Gagal publish tidak
// membatalkan transisi yang sudah terjadi.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, env Envelope) error
}

func NewEnvelope(producer, eventType string, o Order, reason string, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(OrderEventPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		ProductKey: o.ProductKey,
		Quantity:   o.Quantity,
		UnitPrice:  o.UnitPrice,
		Total:      o.Total,
		Status:     o.Status,
		Reason:     reason,
	})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: o.ID,
		Payload:       payload,
	}, nil
}

// Publishers fans an envelope out to several publishers and joins their errors.
type Publishers []EventPublisher

func (ps Publishers) PublishOrderEvent(ctx context.Context, env Envelope) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishOrderEvent(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
