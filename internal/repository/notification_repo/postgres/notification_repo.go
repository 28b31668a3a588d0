package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"postfinance/internal/domain"
	"postfinance/internal/repository/notification_repo"
)

const notificationColumns = `order_id, currency, amount, pm, acceptance, status, cardno, cn, trxdate, payid,
		ncerror, brand, ipcty, cccty, eci, cvccheck, aavcheck, vc, ip, shasign, created_at, updated_at`

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	return r.CreateIfAbsentWith(ctx, n, nil)
}

// CreateIfAbsentWith runs confirm inside the insert transaction. A concurrent
// insert for the same order id blocks on the unique index until this
// transaction commits or rolls back.
func (r *NotificationRepository) CreateIfAbsentWith(ctx context.Context, n *domain.Notification, confirm notification_repo.ConfirmFunc) (*domain.Notification, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	stored, created, err := r.CreateIfAbsentTx(ctx, tx, n)
	if err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}
	if created && confirm != nil {
		if err := confirm(ctx, tx); err != nil {
			_ = tx.Rollback()
			return nil, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit notification for order %s: %w", n.OrderID, err)
	}
	return stored, created, nil
}

// CreateIfAbsentTx relies on the unique index on order_id: of any number of
// concurrent inserts exactly one gets a row back from RETURNING.
func (r *NotificationRepository) CreateIfAbsentTx(ctx context.Context, querier domain.Querier, n *domain.Notification) (*domain.Notification, bool, error) {
	query := `
		INSERT INTO postfinance_ipn (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING order_id
	`
	args := make([]any, 0, len(domain.NotificationFields)+2)
	for _, v := range n.Values() {
		args = append(args, v)
	}
	args = append(args, n.CreatedAt, n.UpdatedAt)

	var orderID string
	err := querier.QueryRowContext(ctx, query, args...).Scan(&orderID)
	if err == nil {
		return n, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert notification for order %s: %w", n.OrderID, err)
	}

	existing, getErr := r.getByOrderID(ctx, querier, n.OrderID)
	if getErr != nil {
		return nil, false, fmt.Errorf("failed to retrieve existing notification after conflict: %w", getErr)
	}
	return existing, false, nil
}

func (r *NotificationRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Notification, error) {
	return r.getByOrderID(ctx, r.db, orderID)
}

func (r *NotificationRepository) getByOrderID(ctx context.Context, querier domain.Querier, orderID string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM postfinance_ipn WHERE order_id = $1`
	n := &domain.Notification{}
	err := querier.QueryRowContext(ctx, query, orderID).Scan(
		&n.OrderID,
		&n.Currency,
		&n.Amount,
		&n.PM,
		&n.Acceptance,
		&n.Status,
		&n.CardNo,
		&n.CN,
		&n.TrxDate,
		&n.PayID,
		&n.NCError,
		&n.Brand,
		&n.IPCty,
		&n.CCCty,
		&n.ECI,
		&n.CVCCheck,
		&n.AAVCheck,
		&n.VC,
		&n.IP,
		&n.SHASign,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification_repo.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification by order_id %s: %w", orderID, err)
	}
	return n, nil
}
