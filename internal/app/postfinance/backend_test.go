package postfinance

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"postfinance/internal/checksum"
	"postfinance/internal/config"
	"postfinance/internal/domain"
	"postfinance/internal/repository/notification_repo/memory"
)

const (
	testShaIn  = "mySecretKey"
	testShaOut = "outPassphrase!"
)

type confirmation struct {
	orderID       string
	amount        decimal.Decimal
	transactionID string
	backend       string
}

type fakeShop struct {
	mu         sync.Mutex
	orders     map[string]*domain.Order
	confirmed  []confirmation
	confirmErr error
	lookupErr  error
}

func newFakeShop(orders ...*domain.Order) *fakeShop {
	s := &fakeShop{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeShop) GetOrder(r *http.Request) (*domain.Order, error) {
	return s.GetOrderForID(r.Context(), r.URL.Query().Get("order_id"))
}

func (s *fakeShop) GetOrderUniqueID(order *domain.Order) string { return order.ID }

func (s *fakeShop) GetOrderTotal(order *domain.Order) decimal.Decimal { return order.Total }

func (s *fakeShop) GetOrderForID(ctx context.Context, id string) (*domain.Order, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *fakeShop) ConfirmPayment(ctx context.Context, order *domain.Order, amount decimal.Decimal, transactionID, backend string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmed = append(s.confirmed, confirmation{order.ID, amount, transactionID, backend})
	return nil
}

func (s *fakeShop) setConfirmErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmErr = err
}

func (s *fakeShop) GetFinishedURL() string { return "https://shop.example.com/finished/" }

func (s *fakeShop) confirmations() []confirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]confirmation(nil), s.confirmed...)
}

func testConfig() config.PostFinanceConfig {
	return config.PostFinanceConfig{
		SecretKey:     testShaIn,
		ShaOutKey:     testShaOut,
		PSPID:         "merchant",
		Currency:      "chf",
		HashAlgorithm: checksum.SHA1,
		LanguageTable: map[string]string{
			"de":    "de_DE",
			"fr-ch": "fr_CH",
			"en-US": "en_US",
		},
	}
}

func testOrder(t *testing.T, id, total string) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(id, "user-1", "CHF", decimal.RequireFromString(total))
	require.NoError(t, err)
	return o
}

func newTestBackend(t *testing.T, shop Shop) (*Backend, *memory.NotificationRepository) {
	t.Helper()
	store := memory.NewNotificationRepository()
	b, err := NewBackend(testConfig(), shop, store, zap.NewNop())
	require.NoError(t, err)
	return b, store
}

func TestNewBackend_Defaults(t *testing.T) {
	b, _ := newTestBackend(t, newFakeShop())

	assert.Equal(t, config.DefaultEntryURL, b.EntryURL())
	assert.Equal(t, checksum.SHA1, b.Signer().Algorithm())
	assert.False(t, b.SkipConfirmation())
}

func TestNewBackend_InvalidFallbackLanguage(t *testing.T) {
	for _, lang := range []string{"de", "DE_de", "de-DE", "deu_DE", "de_DEU"} {
		cfg := testConfig()
		cfg.FallbackLanguage = lang

		_, err := NewBackend(cfg, newFakeShop(), memory.NewNotificationRepository(), zap.NewNop())

		var cfgErr *config.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), lang)
		assert.Equal(t, "POSTFINANCE_FALLBACK_LANGUAGE", cfgErr.Key)
	}
}

func TestNewBackend_MissingSecret(t *testing.T) {
	cfg := testConfig()
	cfg.ShaOutKey = ""

	_, err := NewBackend(cfg, newFakeShop(), memory.NewNotificationRepository(), zap.NewNop())

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "POSTFINANCE_SHAOUT_KEY", cfgErr.Key)
}

func TestConvertLanguage(t *testing.T) {
	b, _ := newTestBackend(t, newFakeShop())

	tests := map[string]string{
		"fr-ch": "fr_CH",
		"fr-CH": "fr_CH",
		"en-US": "en_US",
		"de-AT": "de_DE",
		"de":    "de_DE",
		"it":    "de_DE",
		"":      "de_DE",
		"zz-!!": "de_DE",
	}
	for tag, want := range tests {
		assert.Equal(t, want, b.ConvertLanguage(tag), tag)
	}
}

func TestConvertLanguage_ConfiguredFallback(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackLanguage = "fr_FR"
	b, err := NewBackend(cfg, newFakeShop(), memory.NewNotificationRepository(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "fr_FR", b.ConvertLanguage("ja-JP"))
	assert.Equal(t, "fr_CH", b.ConvertLanguage("fr-ch"))
}

func TestConvertLanguage_KeysDifferingOnlyInCase(t *testing.T) {
	cfg := testConfig()
	cfg.LanguageTable = map[string]string{
		"de-CH": "de_CH",
		"de-ch": "fr_CH",
		"DE":    "de_DE",
		"de":    "",
	}
	b, err := NewBackend(cfg, newFakeShop(), memory.NewNotificationRepository(), zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		assert.Equal(t, "de_CH", b.ConvertLanguage("DE-CH"))
		assert.Equal(t, "fr_CH", b.ConvertLanguage("de-ch"))
		assert.Equal(t, "de_DE", b.ConvertLanguage("de-AT"))
	}
}
