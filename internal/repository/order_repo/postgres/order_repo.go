package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"postfinance/internal/domain"
	"postfinance/internal/repository/order_repo"
)

type pgOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) CreateIfAbsent(ctx context.Context, order *domain.Order) (bool, error) {
	query := `
		INSERT INTO shop_orders (id, user_id, total, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		order.ID, order.UserID, order.Total, order.Currency, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create order", zap.String("order_id", order.ID), zap.Error(err))
		return false, fmt.Errorf("failed to create order %s: %w", order.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for order insert: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Debug("Order already known", zap.String("order_id", order.ID))
		return false, nil
	}
	r.logger.Debug("Order created successfully", zap.String("order_id", order.ID))
	return true, nil
}

func (r *pgOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, user_id, total, currency, status, paid_amount, transaction_id, payment_backend, created_at, updated_at
		FROM shop_orders
		WHERE id = $1
	`
	order := &domain.Order{}
	var paidAmount decimal.NullDecimal
	var transactionID, backend sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.Currency,
		&order.Status,
		&paidAmount,
		&transactionID,
		&backend,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	if paidAmount.Valid {
		order.PaidAmount = paidAmount.Decimal
	}
	order.TransactionID = transactionID.String
	order.PaymentBackend = backend.String
	return order, nil
}

func (r *pgOrderRepository) MarkPaidTx(ctx context.Context, querier domain.Querier, order *domain.Order) error {
	query := `
		UPDATE shop_orders
		SET status = $2, paid_amount = $3, transaction_id = $4, payment_backend = $5, updated_at = $6
		WHERE id = $1 AND status = $7
	`
	res, err := querier.ExecContext(ctx, query,
		order.ID, domain.OrderStatusPaid, order.PaidAmount, order.TransactionID, order.PaymentBackend, order.UpdatedAt, domain.OrderStatusNew)
	if err != nil {
		r.logger.Error("Failed to mark order as paid", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to mark order %s as paid: %w", order.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("No rows affected when marking order as paid", zap.String("order_id", order.ID))
		return domain.ErrOrderAlreadyPaid
	}
	r.logger.Debug("Order marked as paid", zap.String("order_id", order.ID), zap.String("transaction_id", order.TransactionID))
	return nil
}
