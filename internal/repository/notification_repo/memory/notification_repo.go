package memory

import (
	"context"
	"sync"

	"postfinance/internal/domain"
	"postfinance/internal/repository/notification_repo"
)

// NotificationRepository keeps notifications in process memory. The
// check-and-insert happens under one lock, which gives the same guarantee as
// the unique index of the postgres implementation within a single process.
// While a winning insert runs its confirm function the order id is pending and
// other callers for it wait, as they would on the index.
type NotificationRepository struct {
	mu            sync.Mutex
	notifications map[string]domain.Notification
	pending       map[string]chan struct{}
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		notifications: make(map[string]domain.Notification),
		pending:       make(map[string]chan struct{}),
	}
}

func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	return r.CreateIfAbsentWith(ctx, n, nil)
}

func (r *NotificationRepository) CreateIfAbsentWith(ctx context.Context, n *domain.Notification, confirm notification_repo.ConfirmFunc) (*domain.Notification, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	done, existing, err := r.claim(ctx, n.OrderID)
	if err != nil || existing != nil {
		return existing, false, err
	}

	keep := false
	defer func() {
		r.mu.Lock()
		delete(r.pending, n.OrderID)
		if keep {
			r.notifications[n.OrderID] = *n
		}
		r.mu.Unlock()
		close(done)
	}()

	if confirm != nil {
		if err := confirm(ctx, nil); err != nil {
			return nil, false, err
		}
	}
	keep = true
	stored := *n
	return &stored, true, nil
}

// claim marks orderID pending for the caller, or returns the notification
// already stored for it.
func (r *NotificationRepository) claim(ctx context.Context, orderID string) (chan struct{}, *domain.Notification, error) {
	for {
		r.mu.Lock()
		if existing, ok := r.notifications[orderID]; ok {
			r.mu.Unlock()
			return nil, &existing, nil
		}
		wait, busy := r.pending[orderID]
		if !busy {
			done := make(chan struct{})
			r.pending[orderID] = done
			r.mu.Unlock()
			return done, nil, nil
		}
		r.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (r *NotificationRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[orderID]
	if !ok {
		return nil, notification_repo.ErrNotificationNotFound
	}
	return &n, nil
}

func (r *NotificationRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}
