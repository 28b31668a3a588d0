package shop

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"postfinance/internal/app/postfinance"
	"postfinance/internal/checksum"
	"postfinance/internal/config"
	"postfinance/internal/domain"
	notification_postgres "postfinance/internal/repository/notification_repo/postgres"
)

var _ postfinance.TxShop = (*Directory)(nil)

func TestConfirmPaymentTx_UsesCallerTransaction(t *testing.T) {
	d, mock := newTestDirectory(t)
	order := newOrder(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shop_orders`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := d.db.Begin()
	require.NoError(t, err)

	err = d.ConfirmPaymentTx(context.Background(), tx, order, decimal.NewFromInt(54), "8628366", "Postfinance")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPaymentTx_FailureLeavesOrderUntouched(t *testing.T) {
	d, mock := newTestDirectory(t)
	order := newOrder(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shop_orders`)).
		WillReturnError(errors.New("lock timeout"))

	tx, err := d.db.Begin()
	require.NoError(t, err)

	err = d.ConfirmPaymentTx(context.Background(), tx, order, decimal.NewFromInt(54), "8628366", "Postfinance")
	assert.ErrorContains(t, err, "lock timeout")
	assert.Equal(t, domain.OrderStatusNew, order.Status)
}

func TestConfirmPaymentTx_PaidConcurrently(t *testing.T) {
	d, mock := newTestDirectory(t)
	order := newOrder(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shop_orders`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := d.db.Begin()
	require.NoError(t, err)

	err = d.ConfirmPaymentTx(context.Background(), tx, order, decimal.NewFromInt(54), "8628366", "Postfinance")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusNew, order.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func signedIPN(t *testing.T, shaOut string) *checksum.FieldSet {
	t.Helper()
	fs := checksum.NewFieldSet()
	fs.Set("orderID", "Test27")
	fs.Set("currency", "CHF")
	fs.Set("amount", "54")
	fs.Set("STATUS", "9")
	fs.Set("PAYID", "8628366")
	sig, err := checksum.Sign(fs, shaOut, checksum.SHA1)
	require.NoError(t, err)
	fs.Set(checksum.InboundSignatureKey, sig)
	return fs
}

func TestNotification_RedeliveredAfterFailedConfirmation(t *testing.T) {
	d, mock := newTestDirectory(t)
	store := notification_postgres.NewNotificationRepository(d.db)
	backend, err := postfinance.NewBackend(config.PostFinanceConfig{
		SecretKey:     "mySecretKey",
		ShaOutKey:     "outPassphrase!",
		PSPID:         "merchant",
		Currency:      "CHF",
		HashAlgorithm: checksum.SHA1,
	}, d, store, zap.NewNop())
	require.NoError(t, err)

	now := time.Now()
	expectDelivery := func(outboxErr error) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM shop_orders`)).
			WithArgs("Test27").
			WillReturnRows(sqlmock.NewRows(orderColumns).
				AddRow("Test27", "user-1", "54.00", "CHF", "NEW", nil, nil, nil, now, now))
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO postfinance_ipn`)).
			WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow("Test27"))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE shop_orders`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		outbox := mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`))
		if outboxErr != nil {
			outbox.WillReturnError(outboxErr)
			mock.ExpectRollback()
			return
		}
		outbox.WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	expectDelivery(errors.New("transient db error"))
	outcome, err := backend.HandleNotification(context.Background(), signedIPN(t, "outPassphrase!"))
	require.Error(t, err)
	assert.Equal(t, postfinance.OutcomeFailed, outcome)

	expectDelivery(nil)
	outcome, err = backend.HandleNotification(context.Background(), signedIPN(t, "outPassphrase!"))
	require.NoError(t, err)
	assert.Equal(t, postfinance.OutcomeAccepted, outcome)

	assert.NoError(t, mock.ExpectationsWereMet())
}
