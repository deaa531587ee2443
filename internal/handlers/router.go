package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	mW "github.com/undefinedable/zeppelin-orderkuota/internal/middleware"
)

type RouterConfig struct {
	TopUps         *TopUpHandler
	Webhooks       *WebhookHandler
	Auth           *mW.Authenticator
	RequestTimeout time.Duration
	SwaggerURL     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mW.Metrics)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	swaggerURL := cfg.SwaggerURL
	if swaggerURL == "" {
		swaggerURL = "/swagger/doc.json"
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/zeppelin", cfg.Webhooks.HandleZeppelin)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Middleware)

			r.Post("/topups", cfg.TopUps.CreateTopUp)
			r.Get("/topups/{ref}", cfg.TopUps.GetTopUp)
			r.Post("/topups/{ref}/cancel", cfg.TopUps.CancelTopUp)
			r.Get("/topups/{ref}/qr", cfg.TopUps.GetQRCode)
			r.Get("/balance", cfg.TopUps.GetBalance)
			r.Get("/history", cfg.TopUps.GetHistory)
		})
	})

	return r
}
