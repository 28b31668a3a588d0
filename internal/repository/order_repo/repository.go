package order_repo

import (
	"context"

	"postfinance/internal/domain"
)

type OrderRepository interface {
	// CreateIfAbsent stores order unless its id is already known.
	CreateIfAbsent(ctx context.Context, order *domain.Order) (created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// MarkPaidTx persists a paid order. It fails with domain.ErrOrderAlreadyPaid
	// when the stored order is no longer NEW.
	MarkPaidTx(ctx context.Context, querier domain.Querier, order *domain.Order) error
}
