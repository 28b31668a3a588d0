package domain

// PostFinance transaction STATUS codes.
const (
	GatewayStatusInvalid               = "0"
	GatewayStatusAuthorizationRefused  = "2"
	GatewayStatusAuthorized            = "5"
	GatewayStatusPaymentRequested      = "9"
	GatewayStatusAuthorizationWaiting  = "51"
	GatewayStatusAuthorizationNotKnown = "52"
	GatewayStatusPaymentProcessing     = "91"
	GatewayStatusPaymentUncertain      = "92"
	GatewayStatusPaymentRefused        = "93"
)

var paymentStatusLabels = map[string]string{
	GatewayStatusAuthorized:            "Authorized",
	GatewayStatusPaymentRequested:      "Payment requested",
	GatewayStatusInvalid:               "Invalid or incomplete",
	GatewayStatusAuthorizationRefused:  "Authorization refused",
	GatewayStatusAuthorizationWaiting:  "Authorization waiting",
	GatewayStatusAuthorizationNotKnown: "Authorisation not known",
	GatewayStatusPaymentProcessing:     "Payment processing",
	GatewayStatusPaymentUncertain:      "Payment uncertain",
	GatewayStatusPaymentRefused:        "Payment refused",
}

// PaymentStatusLabel returns a human readable label for a STATUS code, or the
// code itself when it is not a known one.
func PaymentStatusLabel(code string) string {
	if label, ok := paymentStatusLabels[code]; ok {
		return label
	}
	return code
}
