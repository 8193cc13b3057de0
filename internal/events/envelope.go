package events

import (
	"encoding/json"
	"time"
)

const (
	TopicOrderCreated = "order.created"

	EventOrderCreated = "OrderCreated"
)

type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderItemPayload struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID       int64              `json:"order_id"`
	BuyerID       int64              `json:"buyer_id"`
	SellerID      int64              `json:"seller_id"`
	TotalAmount   string             `json:"total_amount"`
	PaymentMethod string             `json:"payment_method"`
	Items         []OrderItemPayload `json:"items"`
}
