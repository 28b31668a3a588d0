package postfinance

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"postfinance/internal/domain"
)

// Shop is what the payment backend needs from the store front.
type Shop interface {
	// GetOrder resolves the order the buyer is currently paying for.
	GetOrder(r *http.Request) (*domain.Order, error)
	GetOrderUniqueID(order *domain.Order) string
	GetOrderTotal(order *domain.Order) decimal.Decimal
	// GetOrderForID returns domain.ErrOrderNotFound for unknown ids.
	GetOrderForID(ctx context.Context, id string) (*domain.Order, error)
	ConfirmPayment(ctx context.Context, order *domain.Order, amount decimal.Decimal, transactionID, backend string) error
	GetFinishedURL() string
}

// TxShop is implemented by shops that can confirm a payment inside the
// transaction that records the notification. When the notification store
// provides a transaction, ConfirmPaymentTx is used instead of ConfirmPayment
// so the record and the confirmation commit or roll back together.
type TxShop interface {
	ConfirmPaymentTx(ctx context.Context, querier domain.Querier, order *domain.Order, amount decimal.Decimal, transactionID, backend string) error
}
