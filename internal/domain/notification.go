package domain

import "time"

// Notification is the archived copy of a verified PostFinance instant payment
// notification. Values are stored exactly as received; at most one exists per
// order id.
type Notification struct {
	OrderID    string
	Currency   string
	Amount     string
	PM         string
	Acceptance string
	Status     string
	CardNo     string
	CN         string
	TrxDate    string
	PayID      string
	NCError    string
	Brand      string
	IPCty      string
	CCCty      string
	ECI        string
	CVCCheck   string
	AAVCheck   string
	VC         string
	IP         string
	SHASign    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NotificationFields lists the gateway parameter names in storage order.
var NotificationFields = []string{
	"orderID", "currency", "amount", "PM", "ACCEPTANCE", "STATUS", "CARDNO", "CN",
	"TRXDATE", "PAYID", "NCERROR", "BRAND", "IPCTY", "CCCTY", "ECI", "CVCCheck",
	"AAVCheck", "VC", "IP", "SHASIGN",
}

// NewNotification copies the known parameters out of params. Missing
// parameters are stored as empty strings.
func NewNotification(params map[string]string, now time.Time) *Notification {
	return &Notification{
		OrderID:    params["orderID"],
		Currency:   params["currency"],
		Amount:     params["amount"],
		PM:         params["PM"],
		Acceptance: params["ACCEPTANCE"],
		Status:     params["STATUS"],
		CardNo:     params["CARDNO"],
		CN:         params["CN"],
		TrxDate:    params["TRXDATE"],
		PayID:      params["PAYID"],
		NCError:    params["NCERROR"],
		Brand:      params["BRAND"],
		IPCty:      params["IPCTY"],
		CCCty:      params["CCCTY"],
		ECI:        params["ECI"],
		CVCCheck:   params["CVCCheck"],
		AAVCheck:   params["AAVCheck"],
		VC:         params["VC"],
		IP:         params["IP"],
		SHASign:    params["SHASIGN"],
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Values returns the parameter values in NotificationFields order.
func (n *Notification) Values() []string {
	return []string{
		n.OrderID, n.Currency, n.Amount, n.PM, n.Acceptance, n.Status, n.CardNo, n.CN,
		n.TrxDate, n.PayID, n.NCError, n.Brand, n.IPCty, n.CCCty, n.ECI, n.CVCCheck,
		n.AAVCheck, n.VC, n.IP, n.SHASign,
	}
}

// Params is the inverse of NewNotification.
func (n *Notification) Params() map[string]string {
	values := n.Values()
	params := make(map[string]string, len(values))
	for i, key := range NotificationFields {
		params[key] = values[i]
	}
	return params
}

// DifferingFields names the parameters whose values differ between n and other.
func (n *Notification) DifferingFields(other *Notification) []string {
	a, b := n.Values(), other.Values()
	var diff []string
	for i, key := range NotificationFields {
		if a[i] != b[i] {
			diff = append(diff, key)
		}
	}
	return diff
}

func (n *Notification) StatusLabel() string {
	return PaymentStatusLabel(n.Status)
}
