package postfinance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"postfinance/internal/checksum"
	"postfinance/internal/domain"
)

var ErrNegativeAmount = errors.New("order total must not be negative")

// PaymentRequest carries the per-request inputs of BuildRequest.
type PaymentRequest struct {
	Locale    string
	AcceptURL string
	CancelURL string
	// Overrides win over both the base fields and the configured extra fields.
	Overrides map[string]string
}

var hundred = decimal.NewFromInt(100)

// MinorUnits converts a two-decimal currency amount to its integer minor unit
// representation, rounding half to even.
func MinorUnits(total decimal.Decimal) (string, error) {
	if total.IsNegative() {
		return "", ErrNegativeAmount
	}
	return total.Mul(hundred).RoundBank(0).StringFixed(0), nil
}

// BuildRequest assembles the signed field set that sends the buyer to the
// hosted payment page.
func (b *Backend) BuildRequest(ctx context.Context, order *domain.Order, req PaymentRequest) (*checksum.FieldSet, error) {
	amount, err := MinorUnits(b.shop.GetOrderTotal(order))
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", b.shop.GetOrderUniqueID(order), err)
	}

	fields := checksum.NewFieldSet()
	fields.Set("PSPID", b.cfg.PSPID)
	fields.Set("orderID", b.shop.GetOrderUniqueID(order))
	fields.Set("amount", amount)
	fields.Set("currency", b.cfg.Currency)
	fields.Set("language", b.ConvertLanguage(req.Locale))
	fields.Set("ACCEPTURL", req.AcceptURL)
	fields.Set("CANCELURL", req.CancelURL)
	fields.MergeMap(b.cfg.ExtraFields)
	fields.MergeMap(req.Overrides)

	if err := b.signer.Attach(fields); err != nil {
		return nil, fmt.Errorf("failed to sign payment request: %w", err)
	}
	return fields, nil
}

// PaymentRedirectURL is the entry URL with fields as query string, used when
// the confirmation page is skipped.
func (b *Backend) PaymentRedirectURL(fields *checksum.FieldSet) string {
	return b.cfg.EntryURL + "?" + fields.Values().Encode()
}
