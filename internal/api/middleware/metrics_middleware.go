package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type RequestObserver interface {
	ObserveRequest(handler, method string, status int, elapsed time.Duration)
}

// MetricsMiddleware 以 chi route pattern 當 label，避免 order id 造成高基數
func MetricsMiddleware(observer RequestObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recoder := NewStatusRecoder(w)
			next.ServeHTTP(recoder, r)

			pattern := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			observer.ObserveRequest(pattern, r.Method, recoder.Status(), time.Since(start))
		})
	}
}
