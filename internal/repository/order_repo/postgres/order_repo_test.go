package postgres_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"postfinance/internal/domain"
	"postfinance/internal/repository/order_repo/postgres"
)

var orderColumns = []string{"id", "user_id", "total", "currency", "status", "paid_amount", "transaction_id", "payment_backend", "created_at", "updated_at"}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestCreateIfAbsent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewOrderRepository(db, zap.NewNop())
	order, err := domain.NewOrder("Test27", "user-1", "CHF", decimal.RequireFromString("54.00"))
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO shop_orders`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (id) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfAbsent(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewOrderRepository(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta(`FROM shop_orders`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetByID_NewOrder(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewOrderRepository(db, zap.NewNop())
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM shop_orders`)).
		WithArgs("Test27").
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow("Test27", "user-1", "54.00", "CHF", "NEW", nil, nil, nil, now, now))

	order, err := repo.GetByID(context.Background(), "Test27")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("54").Equal(order.Total))
	assert.Equal(t, domain.OrderStatusNew, order.Status)
	assert.True(t, order.PaidAmount.IsZero())
	assert.Empty(t, order.TransactionID)
}

func TestGetByID_PaidOrder(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewOrderRepository(db, zap.NewNop())
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM shop_orders`)).
		WithArgs("Test27").
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow("Test27", "user-1", "54.00", "CHF", "PAID", "54", "8628366", "Postfinance", now, now))

	order, err := repo.GetByID(context.Background(), "Test27")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.True(t, order.FullyPaid())
	assert.Equal(t, "Postfinance", order.PaymentBackend)
}

func TestMarkPaidTx(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := postgres.NewOrderRepository(db, zap.NewNop())
	order, err := domain.NewOrder("Test27", "user-1", "CHF", decimal.RequireFromString("54.00"))
	require.NoError(t, err)
	require.NoError(t, order.MarkAsPaid(decimal.RequireFromString("54"), "8628366", "Postfinance"))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shop_orders`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shop_orders`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkPaidTx(context.Background(), db, order))
	assert.ErrorIs(t, repo.MarkPaidTx(context.Background(), db, order), domain.ErrOrderAlreadyPaid)
}
