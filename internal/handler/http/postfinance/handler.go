package postfinance_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"postfinance/internal/app/postfinance"
	"postfinance/internal/checksum"
	"postfinance/internal/domain"
)

const (
	SuccessPath = "/postfinance/success/"
	IPNPath     = "/postfinance/instantpaymentnotification/"
	// DeprecatedIPNPath is still accepted for merchants whose back office
	// configuration predates IPNPath.
	DeprecatedIPNPath = "/postfinance/somethinghardtoguess/instantpaymentnotification/"
)

type PaymentBackend interface {
	Shop() postfinance.Shop
	BuildRequest(ctx context.Context, order *domain.Order, req postfinance.PaymentRequest) (*checksum.FieldSet, error)
	PaymentRedirectURL(fields *checksum.FieldSet) string
	EntryURL() string
	SkipConfirmation() bool
	HandleNotification(ctx context.Context, fields *checksum.FieldSet) (postfinance.Outcome, error)
}

type PostFinanceHandler struct {
	backend    PaymentBackend
	cancelPath string
	logger     *zap.Logger
}

func NewPostFinanceHandler(b PaymentBackend, cancelPath string, l *zap.Logger) *PostFinanceHandler {
	return &PostFinanceHandler{backend: b, cancelPath: cancelPath, logger: l}
}

type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PaymentFormResponse describes the hidden form the store front posts to the
// gateway. Fields keep the order they were built in.
type PaymentFormResponse struct {
	URL    string      `json:"url"`
	Method string      `json:"method"`
	Fields []FormField `json:"fields"`
}

func (h *PostFinanceHandler) PaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	shop := h.backend.Shop()
	order, err := shop.GetOrder(r)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			h.logger.Warn("Payment requested for unknown order", zap.Error(err))
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to resolve order for payment", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	fields, err := h.backend.BuildRequest(r.Context(), order, postfinance.PaymentRequest{
		Locale:    requestLocale(r),
		AcceptURL: absoluteURL(r, SuccessPath),
		CancelURL: absoluteURL(r, h.cancelPath),
	})
	if err != nil {
		h.logger.Error("Failed to build payment request", zap.String("order_id", order.ID), zap.Error(err))
		http.Error(w, "Unable to build payment request", http.StatusUnprocessableEntity)
		return
	}

	if h.backend.SkipConfirmation() {
		http.Redirect(w, r, h.backend.PaymentRedirectURL(fields), http.StatusFound)
		return
	}

	resp := PaymentFormResponse{
		URL:    h.backend.EntryURL(),
		Method: http.MethodPost,
		Fields: make([]FormField, 0, fields.Len()),
	}
	for _, k := range fields.Keys() {
		resp.Fields = append(resp.Fields, FormField{Name: k, Value: fields.Value(k)})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

// SuccessHandler is where the gateway sends the buyer back. When the redirect
// carries the notification parameters it is processed like an IPN; the buyer
// is sent to the finished page either way.
func (h *PostFinanceHandler) SuccessHandler(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Query()) > 0 {
		fields := checksum.FieldSetFromValues(r.URL.Query())
		outcome, err := h.backend.HandleNotification(r.Context(), fields)
		if err != nil {
			h.logger.Warn("Notification on success redirect not accepted",
				zap.Stringer("outcome", outcome),
				zap.Error(err))
		}
	}
	http.Redirect(w, r, h.backend.Shop().GetFinishedURL(), http.StatusFound)
}

// NotificationHandler accepts IPNs as query string or form body.
func (h *PostFinanceHandler) NotificationHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("Malformed notification request", zap.Error(err))
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	outcome, err := h.backend.HandleNotification(r.Context(), checksum.FieldSetFromValues(r.Form))
	switch outcome {
	case postfinance.OutcomeAccepted:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OKAY"))
	case postfinance.OutcomeRejected:
		http.Error(w, "Bad request", http.StatusBadRequest)
	case postfinance.OutcomeOrderNotFound:
		http.Error(w, "Order not found", http.StatusNotFound)
	default:
		h.logger.Error("Notification processing failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *PostFinanceHandler) DeprecatedNotificationHandler(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("Notification received on deprecated URL, configure the gateway to use "+IPNPath,
		zap.String("path", r.URL.Path))
	h.NotificationHandler(w, r)
}

// requestLocale prefers an explicit lang parameter over Accept-Language.
func requestLocale(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}
