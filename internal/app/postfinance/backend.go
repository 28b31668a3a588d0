// Package postfinance implements the PostFinance offsite payment backend:
// building signed payment requests and reconciling instant payment
// notifications against the shop's orders.
package postfinance

import (
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"postfinance/internal/checksum"
	"postfinance/internal/config"
	"postfinance/internal/repository/notification_repo"
)

const BackendName = "Postfinance"

type Backend struct {
	cfg    config.PostFinanceConfig
	signer *checksum.Signer
	shop   Shop
	store  notification_repo.NotificationRepository
	logger *zap.Logger
	now    func() time.Time

	// folded maps lower-cased conversion table keys to their locale.
	folded map[string]string
}

func NewBackend(cfg config.PostFinanceConfig, shop Shop, store notification_repo.NotificationRepository, logger *zap.Logger) (*Backend, error) {
	if cfg.FallbackLanguage == "" {
		cfg.FallbackLanguage = config.DefaultFallbackLanguage
	}
	if cfg.EntryURL == "" {
		cfg.EntryURL = config.DefaultEntryURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	algo, err := checksum.ParseAlgorithm(string(cfg.HashAlgorithm))
	if err != nil {
		return nil, &config.ConfigurationError{Key: "POSTFINANCE_HASH_ALGORITHM", Reason: err.Error()}
	}
	cfg.HashAlgorithm = algo
	cfg.Currency = strings.ToUpper(cfg.Currency)

	signer, err := checksum.NewSigner(cfg.HashAlgorithm, cfg.SecretKey, cfg.ShaOutKey)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "POSTFINANCE_SECRET_KEY", Reason: err.Error()}
	}
	return &Backend{
		cfg:    cfg,
		signer: signer,
		shop:   shop,
		store:  store,
		logger: logger,
		now:    time.Now,
		folded: foldLanguageTable(cfg.LanguageTable),
	}, nil
}

// foldLanguageTable indexes table by lower-cased key. Keys that collide under
// case folding are resolved in sorted order, so "de-CH" wins over "de-ch".
func foldLanguageTable(table map[string]string) map[string]string {
	keys := make([]string, 0, len(table))
	for k, v := range table {
		if v != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	folded := make(map[string]string, len(keys))
	for _, k := range keys {
		lower := strings.ToLower(k)
		if _, ok := folded[lower]; !ok {
			folded[lower] = table[k]
		}
	}
	return folded
}

func (b *Backend) Signer() *checksum.Signer {
	return b.signer
}

func (b *Backend) Shop() Shop {
	return b.shop
}

func (b *Backend) EntryURL() string {
	return b.cfg.EntryURL
}

func (b *Backend) SkipConfirmation() bool {
	return b.cfg.SkipConfirmation
}

// ConvertLanguage maps an RFC 5646 tag to the gateway's xx_YY locale using
// the conversion table. An exact match wins, then a case-insensitive one, then
// the tag's base language. Anything else yields the fallback language.
func (b *Backend) ConvertLanguage(tag string) string {
	table := b.cfg.LanguageTable
	if tag == "" || len(table) == 0 {
		return b.cfg.FallbackLanguage
	}
	if found := table[tag]; found != "" {
		return found
	}
	if found, ok := b.folded[strings.ToLower(tag)]; ok {
		return found
	}
	if parsed, err := language.Parse(tag); err == nil {
		base, _ := parsed.Base()
		if found, ok := b.folded[strings.ToLower(base.String())]; ok {
			return found
		}
	}
	return b.cfg.FallbackLanguage
}
