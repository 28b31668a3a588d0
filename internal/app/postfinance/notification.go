package postfinance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"postfinance/internal/checksum"
	"postfinance/internal/domain"
)

type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeRejected
	OutcomeOrderNotFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeOrderNotFound:
		return "order_not_found"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// HandleNotification verifies an instant payment notification, records it and
// confirms the payment with the shop. Only the caller whose insert created the
// record confirms, and the record is kept only if the confirmation succeeds.
//
// OutcomeFailed means the notification could not be processed because of an
// infrastructure error and should be delivered again. Nothing is recorded in
// that case, so the next delivery confirms.
func (b *Backend) HandleNotification(ctx context.Context, fields *checksum.FieldSet) (Outcome, error) {
	if err := b.signer.CheckInbound(fields); err != nil {
		b.logger.Warn("Rejected notification", zap.String("order_id", lookup(fields, "orderID")), zap.Error(err))
		return OutcomeRejected, fmt.Errorf("%w: %w", domain.ErrNotificationInvalid, err)
	}

	params := make(map[string]string, len(domain.NotificationFields))
	for _, key := range domain.NotificationFields {
		params[key] = lookup(fields, key)
	}
	n := domain.NewNotification(params, b.now())
	logger := b.logger.With(zap.String("order_id", n.OrderID), zap.String("pay_id", n.PayID))

	amount, err := decimal.NewFromString(n.Amount)
	if err != nil {
		logger.Warn("Rejected notification with unparsable amount", zap.String("amount", n.Amount))
		return OutcomeRejected, fmt.Errorf("%w: amount %q: %w", domain.ErrNotificationInvalid, n.Amount, err)
	}

	order, err := b.shop.GetOrderForID(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			logger.Warn("Notification for unknown order")
			return OutcomeOrderNotFound, err
		}
		logger.Error("Failed to look up order", zap.Error(err))
		return OutcomeFailed, fmt.Errorf("failed to look up order %s: %w", n.OrderID, err)
	}

	var confirmErr error
	confirm := func(ctx context.Context, querier domain.Querier) error {
		confirmErr = b.confirm(ctx, querier, order, amount, n.PayID)
		return confirmErr
	}

	stored, created, err := b.store.CreateIfAbsentWith(ctx, n, confirm)
	if confirmErr != nil {
		logger.Error("Payment confirmation failed, notification not recorded", zap.Error(confirmErr))
		return OutcomeFailed, fmt.Errorf("failed to confirm payment for order %s: %w", n.OrderID, confirmErr)
	}
	if err != nil {
		logger.Error("Failed to record notification", zap.Error(err))
		return OutcomeFailed, fmt.Errorf("failed to record notification for order %s: %w", n.OrderID, err)
	}

	if !created {
		if diff := stored.DifferingFields(n); len(diff) > 0 {
			logger.Warn("Ignoring repeated notification with different values",
				zap.Strings("fields", diff),
				zap.String("recorded_status", stored.StatusLabel()),
				zap.String("received_status", n.StatusLabel()),
			)
		} else {
			logger.Info("Duplicate notification ignored")
		}
		return OutcomeAccepted, nil
	}

	logger.Info("Payment confirmed",
		zap.String("amount", amount.String()),
		zap.String("status", n.StatusLabel()),
	)
	return OutcomeAccepted, nil
}

func (b *Backend) confirm(ctx context.Context, querier domain.Querier, order *domain.Order, amount decimal.Decimal, payID string) error {
	if txShop, ok := b.shop.(TxShop); ok && querier != nil {
		return txShop.ConfirmPaymentTx(ctx, querier, order, amount, payID, BackendName)
	}
	return b.shop.ConfirmPayment(ctx, order, amount, payID, BackendName)
}

func lookup(fields *checksum.FieldSet, key string) string {
	if fields == nil {
		return ""
	}
	v, _ := fields.Lookup(key)
	return v
}
