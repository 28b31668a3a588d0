package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleParams() map[string]string {
	return map[string]string{
		"orderID":    "Test27",
		"currency":   "CHF",
		"amount":     "54",
		"PM":         "CreditCard",
		"ACCEPTANCE": "test123",
		"STATUS":     "9",
		"CARDNO":     "XXXXXXXXXXXX3333",
		"CN":         "Testauzore Testos",
		"TRXDATE":    "11/08/10",
		"PAYID":      "8628366",
		"NCERROR":    "0",
		"BRAND":      "VISA",
		"IPCTY":      "CH",
		"CCCTY":      "US",
		"ECI":        "7",
		"CVCCheck":   "NO",
		"AAVCheck":   "NO",
		"VC":         "NO",
		"IP":         "84.226.127.220",
		"SHASIGN":    "CEE483B0557B8E3437A55094221E15C7DB6A0D63",
	}
}

func TestNewNotification_CopiesKnownFieldsVerbatim(t *testing.T) {
	params := sampleParams()
	params["ED"] = "0317"
	now := time.Date(2010, 8, 11, 12, 0, 0, 0, time.UTC)

	n := NewNotification(params, now)

	assert.Equal(t, "Test27", n.OrderID)
	assert.Equal(t, "54", n.Amount)
	assert.Equal(t, "8628366", n.PayID)
	assert.Equal(t, "Testauzore Testos", n.CN)
	assert.Equal(t, now, n.CreatedAt)
	assert.Equal(t, now, n.UpdatedAt)

	delete(params, "ED")
	assert.Equal(t, params, n.Params())
	assert.Len(t, n.Values(), len(NotificationFields))
}

func TestNewNotification_MissingFieldsAreEmpty(t *testing.T) {
	n := NewNotification(map[string]string{"orderID": "1"}, time.Now())

	assert.Equal(t, "1", n.OrderID)
	assert.Empty(t, n.Brand)
	assert.Empty(t, n.SHASign)
}

func TestNotification_DifferingFields(t *testing.T) {
	a := NewNotification(sampleParams(), time.Now())
	assert.Empty(t, a.DifferingFields(NewNotification(sampleParams(), time.Now().Add(time.Hour))))

	changed := sampleParams()
	changed["STATUS"] = "5"
	changed["SHASIGN"] = "OTHER"
	b := NewNotification(changed, time.Now())

	assert.Equal(t, []string{"STATUS", "SHASIGN"}, a.DifferingFields(b))
}

func TestPaymentStatusLabel(t *testing.T) {
	assert.Equal(t, "Payment requested", PaymentStatusLabel("9"))
	assert.Equal(t, "Payment refused", PaymentStatusLabel(GatewayStatusPaymentRefused))
	assert.Equal(t, "77", PaymentStatusLabel("77"))
	assert.Equal(t, "Authorized", NewNotification(map[string]string{"STATUS": "5"}, time.Now()).StatusLabel())
}
