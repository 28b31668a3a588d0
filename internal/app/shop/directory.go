// Package shop is the order directory the payment backend confirms payments
// against. Orders arrive from the order service over Kafka; confirmed payments
// leave through the outbox.
package shop

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"postfinance/internal/domain"
	"postfinance/internal/repository/order_repo"
	"postfinance/internal/repository/outbox_repo"
	"postfinance/internal/util"
)

const (
	OrderIDQueryParam = "order_id"
	OrderIDHeader     = "X-Order-ID"

	paymentStatusConfirmed = "SUCCESS"
)

type Directory struct {
	db                 *sql.DB
	orderRepo          order_repo.OrderRepository
	outboxRepo         outbox_repo.OutboxRepository
	paymentStatusTopic string
	finishedURL        string
	logger             *zap.Logger
}

func NewDirectory(
	db *sql.DB,
	orderRepo order_repo.OrderRepository,
	outboxRepo outbox_repo.OutboxRepository,
	paymentStatusTopic string,
	finishedURL string,
	logger *zap.Logger,
) *Directory {
	return &Directory{
		db:                 db,
		orderRepo:          orderRepo,
		outboxRepo:         outboxRepo,
		paymentStatusTopic: paymentStatusTopic,
		finishedURL:        finishedURL,
		logger:             logger,
	}
}

// GetOrder reads the order id from the order_id query parameter, falling back
// to the X-Order-ID header.
func (d *Directory) GetOrder(r *http.Request) (*domain.Order, error) {
	id := strings.TrimSpace(r.URL.Query().Get(OrderIDQueryParam))
	if id == "" {
		id = strings.TrimSpace(r.Header.Get(OrderIDHeader))
	}
	if id == "" {
		return nil, fmt.Errorf("no order id in request: %w", domain.ErrOrderNotFound)
	}
	return d.GetOrderForID(r.Context(), id)
}

func (d *Directory) GetOrderUniqueID(order *domain.Order) string {
	return order.ID
}

func (d *Directory) GetOrderTotal(order *domain.Order) decimal.Decimal {
	return order.Total
}

func (d *Directory) GetOrderForID(ctx context.Context, id string) (*domain.Order, error) {
	return d.orderRepo.GetByID(ctx, id)
}

func (d *Directory) GetFinishedURL() string {
	return d.finishedURL
}

// RegisterOrder makes an order known to the directory. Replayed events for an
// existing order are ignored.
func (d *Directory) RegisterOrder(ctx context.Context, event domain.OrderCreatedEvent) (bool, error) {
	order, err := domain.NewOrder(event.OrderID, event.UserID, strings.ToUpper(event.Currency), event.Amount)
	if err != nil {
		return false, fmt.Errorf("invalid order %q: %w", event.OrderID, err)
	}
	if !event.Timestamp.IsZero() {
		order.CreatedAt = event.Timestamp
		order.UpdatedAt = event.Timestamp
	}
	return d.orderRepo.CreateIfAbsent(ctx, order)
}

// ConfirmPayment marks the order paid and queues a payment_confirmed event in
// the same transaction. Confirming an order that is already paid is a no-op.
func (d *Directory) ConfirmPayment(ctx context.Context, order *domain.Order, amount decimal.Decimal, transactionID, backend string) error {
	logger := d.logger.With(zap.String("order_id", order.ID), zap.String("transaction_id", transactionID))

	paid, ok, err := d.preparePaid(logger, order, amount, transactionID, backend)
	if err != nil || !ok {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("Failed to begin transaction for payment confirmation", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic during payment confirmation, rolling back", zap.Any("panic", r))
			tx.Rollback()
			panic(r)
		}
	}()

	if err := d.confirmPaymentTx(ctx, tx, paid); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Failed to roll back payment confirmation", zap.Error(rbErr))
		}
		if errors.Is(err, domain.ErrOrderAlreadyPaid) {
			logger.Warn("Order was paid concurrently, skipping confirmation")
			return nil
		}
		return fmt.Errorf("failed to confirm payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit payment confirmation", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	*order = *paid
	logger.Info("Order marked as paid", zap.String("amount", amount.String()), zap.String("backend", backend))
	return nil
}

// ConfirmPaymentTx is ConfirmPayment inside a transaction owned by the
// caller. Nothing is committed here; a returned error leaves the caller to
// roll back.
func (d *Directory) ConfirmPaymentTx(ctx context.Context, querier domain.Querier, order *domain.Order, amount decimal.Decimal, transactionID, backend string) error {
	logger := d.logger.With(zap.String("order_id", order.ID), zap.String("transaction_id", transactionID))

	paid, ok, err := d.preparePaid(logger, order, amount, transactionID, backend)
	if err != nil || !ok {
		return err
	}

	if err := d.confirmPaymentTx(ctx, querier, paid); err != nil {
		if errors.Is(err, domain.ErrOrderAlreadyPaid) {
			logger.Warn("Order was paid concurrently, skipping confirmation")
			return nil
		}
		return fmt.Errorf("failed to confirm payment: %w", err)
	}

	*order = *paid
	logger.Info("Order marked as paid", zap.String("amount", amount.String()), zap.String("backend", backend))
	return nil
}

// preparePaid returns a paid copy of order. ok is false when the order was
// already paid and there is nothing to do.
func (d *Directory) preparePaid(logger *zap.Logger, order *domain.Order, amount decimal.Decimal, transactionID, backend string) (*domain.Order, bool, error) {
	paid := *order
	if err := paid.MarkAsPaid(amount, transactionID, backend); err != nil {
		if errors.Is(err, domain.ErrOrderAlreadyPaid) {
			logger.Warn("Order already paid, skipping confirmation")
			return nil, false, nil
		}
		return nil, false, err
	}
	if !paid.FullyPaid() {
		logger.Warn("Payment does not cover the order total",
			zap.String("amount", amount.String()),
			zap.String("total", order.Total.String()))
	}
	return &paid, true, nil
}

func (d *Directory) confirmPaymentTx(ctx context.Context, querier domain.Querier, order *domain.Order) error {
	if err := d.orderRepo.MarkPaidTx(ctx, querier, order); err != nil {
		return err
	}

	payload, err := PreparePaymentConfirmedPayload(order, order.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := util.GenerateUUID()
	if err != nil {
		return err
	}
	msg := &domain.OutboxMessage{
		ID:            id,
		AggregateID:   order.ID,
		AggregateType: domain.AggregateTypeOrder,
		MessageType:   domain.MessageTypePaymentConfirmed,
		Topic:         d.paymentStatusTopic,
		Key:           order.ID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     order.UpdatedAt,
	}
	return d.outboxRepo.CreateMessageTx(ctx, querier, msg)
}

func PreparePaymentConfirmedPayload(order *domain.Order, eventTime time.Time) ([]byte, error) {
	event := domain.PaymentConfirmedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Amount:        order.PaidAmount,
		Currency:      order.Currency,
		TransactionID: order.TransactionID,
		Backend:       order.PaymentBackend,
		Status:        paymentStatusConfirmed,
		Timestamp:     eventTime,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment confirmed event: %w", err)
	}
	return payload, nil
}
