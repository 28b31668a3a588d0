package postfinance_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(b PaymentBackend, cancelPath string, allowedOrigins []string, l *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	RegisterRoutes(r, b, cancelPath, allowedOrigins, l)
	return r
}

func RegisterRoutes(r chi.Router, b PaymentBackend, cancelPath string, allowedOrigins []string, l *zap.Logger) {
	handler := NewPostFinanceHandler(b, cancelPath, l.With(zap.String("component", "PostFinanceHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("PostFinance backend is healthy!"))
	})

	r.Route("/postfinance", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   allowedOrigins,
				AllowedMethods:   []string{"GET", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "X-Order-ID"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
			r.Get("/", handler.PaymentRequestHandler)
			r.Options("/", func(w http.ResponseWriter, r *http.Request) {})
		})

		r.Get("/success/", handler.SuccessHandler)

		r.Get("/instantpaymentnotification/", handler.NotificationHandler)
		r.Post("/instantpaymentnotification/", handler.NotificationHandler)

		r.Get("/somethinghardtoguess/instantpaymentnotification/", handler.DeprecatedNotificationHandler)
		r.Post("/somethinghardtoguess/instantpaymentnotification/", handler.DeprecatedNotificationHandler)
	})
}
