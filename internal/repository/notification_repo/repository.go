package notification_repo

import (
	"context"
	"errors"

	"postfinance/internal/domain"
)

// ConfirmFunc runs in the same unit of work as the insert that created a
// notification. querier is the open transaction for database-backed stores
// and nil for stores without one.
type ConfirmFunc func(ctx context.Context, querier domain.Querier) error

// NotificationRepository stores at most one notification per order id.
type NotificationRepository interface {
	// CreateIfAbsent inserts n unless a notification for n.OrderID exists.
	// It reports created=true only to the single caller whose insert won;
	// every other caller gets the stored notification back.
	CreateIfAbsent(ctx context.Context, n *domain.Notification) (stored *domain.Notification, created bool, err error)
	// CreateIfAbsentWith behaves like CreateIfAbsent and additionally runs
	// confirm when the insert wins. If confirm fails the insert is undone and
	// its error is returned, so a later delivery of the same notification
	// creates the record again. Concurrent callers for the same order id wait
	// until the winner has either kept or undone its record.
	CreateIfAbsentWith(ctx context.Context, n *domain.Notification, confirm ConfirmFunc) (stored *domain.Notification, created bool, err error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Notification, error)
}

var ErrNotificationNotFound = errors.New("notification not found")
