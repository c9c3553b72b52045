package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequestIdMiddleware(t *testing.T) {
	var seen string
	h := RequestIdMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = util.GetRequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "req-1", seen)
	require.Equal(t, "req-1", rec.Header().Get(constants.HeaderRequestID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.NotEqual(t, "req-1", seen)
}

func TestPrincipalMiddleware(t *testing.T) {
	testCases := []struct {
		name    string
		userID  string
		role    string
		ok      bool
		isAdmin bool
	}{
		{name: "customer", userID: "7", ok: true},
		{name: "admin", userID: "7", role: "Admin", ok: true, isAdmin: true},
		{name: "unknown role is customer", userID: "7", role: "root", ok: true},
		{name: "missing", userID: "", ok: false},
		{name: "not a number", userID: "abc", ok: false},
		{name: "non positive", userID: "0", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var principal model.Principal
			var ok bool
			h := PrincipalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				principal, ok = util.GetPrincipalFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(constants.HeaderUserID, tc.userID)
			req.Header.Set(constants.HeaderUserRole, tc.role)
			h.ServeHTTP(httptest.NewRecorder(), req)

			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, 7, principal.UserID)
				require.Equal(t, tc.isAdmin, principal.IsAdmin())
			}
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	h := RecoverMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, buf.String(), "panic recovered")
	require.Contains(t, buf.String(), "boom")
}

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	h := LoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(util.WithPrincipal(req.Context(), model.Principal{UserID: 5}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Contains(t, buf.String(), `"status":418`)
	require.Contains(t, buf.String(), `"user_id":5`)
	require.Contains(t, buf.String(), "request completed")
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (l *stubLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allowed, l.err
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	limited := 0
	limiter := &stubLimiter{allowed: false}
	h := NewRateLimitMiddleware(limiter, func() { limited++ }, zerolog.Nop())(next)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(util.WithPrincipal(req.Context(), model.Principal{UserID: 9}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, []string{"user:9"}, limiter.keys)
	require.Equal(t, 1, limited)

	// limiter 故障時放行
	limiter.err = errors.New("redis down")
	rec = httptest.NewRecorder()
	anon := httptest.NewRequest(http.MethodPost, "/", nil)
	anon.RemoteAddr = "10.0.0.1:5555"
	h.ServeHTTP(rec, anon)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "ip:10.0.0.1", limiter.keys[1])
}

type stubObserver struct {
	handler string
	status  int
}

func (o *stubObserver) ObserveRequest(handler, method string, status int, elapsed time.Duration) {
	o.handler = handler
	o.status = status
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	observer := &stubObserver{}
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(observer))
	r.Get("/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	require.Equal(t, "/orders/{orderID}", observer.handler)
	require.Equal(t, http.StatusAccepted, observer.status)
}
