package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew  OrderStatus = "NEW"
	OrderStatusPaid OrderStatus = "PAID"
)

// Order is the shop's view of an order awaiting an offsite payment.
type Order struct {
	ID             string
	UserID         string
	Total          decimal.Decimal
	Currency       string
	Status         OrderStatus
	PaidAmount     decimal.Decimal
	TransactionID  string
	PaymentBackend string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewOrder(id, userID, currency string, total decimal.Decimal) (*Order, error) {
	if id == "" || total.IsNegative() {
		return nil, errors.New("invalid order data")
	}
	now := time.Now()
	return &Order{
		ID:        id,
		UserID:    userID,
		Total:     total,
		Currency:  currency,
		Status:    OrderStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (o *Order) MarkAsPaid(amount decimal.Decimal, transactionID, backend string) error {
	if o.Status == OrderStatusPaid {
		return ErrOrderAlreadyPaid
	}
	o.Status = OrderStatusPaid
	o.PaidAmount = amount
	o.TransactionID = transactionID
	o.PaymentBackend = backend
	o.UpdatedAt = time.Now()
	return nil
}

// FullyPaid reports whether the recorded payment covers the order total.
func (o *Order) FullyPaid() bool {
	return o.Status == OrderStatusPaid && o.PaidAmount.GreaterThanOrEqual(o.Total)
}
