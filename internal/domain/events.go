package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MessageTypePaymentConfirmed = "payment_confirmed"
	AggregateTypeOrder          = "order"
)

// OrderCreatedEvent is consumed from the shop's order events topic.
type OrderCreatedEvent struct {
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}

// PaymentConfirmedEvent is published once per order after its first verified
// notification.
type PaymentConfirmedEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id"`
	Backend       string          `json:"backend"`
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
}
