package router

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	m "github.com/RoyceAzure/lab/storefront/internal/api/middleware"
	"github.com/RoyceAzure/lab/storefront/internal/infra/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Handlers struct {
	OrderHandler    *handler.OrderHandler
	DiscountHandler *handler.DiscountHandler
	HealthHandler   *handler.HealthHandler
}

type Metrics interface {
	m.RequestObserver
	IncRateLimited()
	Handler() http.Handler
}

func SetupRouter(handlers Handlers, checkoutLimiter ratelimit.Limiter, metrics Metrics, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// 全局中間件
	r.Use(m.RequestIdMiddleware)
	r.Use(middleware.RealIP)
	r.Use(m.PrincipalMiddleware)
	r.Use(m.LoggerMiddleware(logger))
	// metrics 在 recover 外層，panic 轉成的 500 也要計入
	if metrics != nil {
		r.Use(m.MetricsMiddleware(metrics))
	}
	r.Use(m.RecoverMiddleware(logger))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/health", handlers.HealthHandler.Health)

	// API 路由
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			checkout := r
			if checkoutLimiter != nil {
				var onLimited func()
				if metrics != nil {
					onLimited = metrics.IncRateLimited
				}
				checkout = r.With(m.NewRateLimitMiddleware(checkoutLimiter, onLimited, logger))
			}
			checkout.Post("/", handlers.OrderHandler.PlaceOrder)
			r.Get("/", handlers.OrderHandler.ListOrders)
			r.Get("/{orderID}", handlers.OrderHandler.GetOrder)
			r.Patch("/{orderID}/status", handlers.OrderHandler.UpdateOrderStatus)
		})
		r.Post("/discounts/preview", handlers.DiscountHandler.Preview)
	})

	return r
}

// PrintRoutes 列出所有路由
func PrintRoutes(r chi.Routes, logger zerolog.Logger) {
	_ = chi.Walk(r, func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		logger.Debug().Str("method", method).Str("route", route).Msg("route registered")
		return nil
	})
}
