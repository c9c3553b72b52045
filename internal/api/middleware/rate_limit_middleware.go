package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/infra/ratelimit"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/rs/zerolog"
)

// NewRateLimitMiddleware 依使用者限流，未帶身分時以來源 IP 計
// limiter 故障時放行
func NewRateLimitMiddleware(limiter ratelimit.Limiter, onLimited func(), logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if principal, ok := util.GetPrincipalFromContext(r.Context()); ok {
				key = "user:" + strconv.Itoa(principal.UserID)
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if onLimited != nil {
					onLimited()
				}
				w.Header().Set("Retry-After", "1")
				api.ErrorJSON(w, http.StatusTooManyRequests, "too_many_requests", "Too Many Requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
