package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/config"
	"github.com/tramitia/process-tracker/internal/http/middleware"
	"github.com/tramitia/process-tracker/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var ctxLogger *zap.Logger
	h := middleware.Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = logger.FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusCreated)
	}))

	t.Run("keeps incoming request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/budgets", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", rec.Header().Get(middleware.RequestIDHeader))
		require.NotNil(t, ctxLogger)
		entry := logs.All()[logs.Len()-1]
		assert.Equal(t, "req-42", entry.ContextMap()["requestId"])
		assert.EqualValues(t, http.StatusCreated, entry.ContextMap()["statusCode"])
	})

	t.Run("generates a request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	})
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := middleware.Recoverer(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
	assert.Equal(t, 1, logs.FilterMessage("panic while handling request").Len())
}

func TestSecurityHeaders(t *testing.T) {
	h := middleware.SecurityHeaders(&config.SecurityConfig{
		EnableHSTS:            true,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		FrameOptions:          "DENY",
		ContentTypeNosniff:    true,
	})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestRateLimiter(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 2,
		WhitelistIPs:      []string{"10.0.0.9"},
		WhitelistPaths:    []string{"/health", "/swagger/*"},
	}
	h := middleware.NewRateLimiter(cfg, zap.NewNop()).Limit(okHandler())

	do := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/api/v1/processes", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("/api/v1/processes", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("/api/v1/processes", "10.0.0.1"))

	t.Run("other clients keep their own budget", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do("/api/v1/processes", "10.0.0.2"))
	})

	t.Run("whitelists bypass the limit", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, do("/health", "10.0.0.1"))
			assert.Equal(t, http.StatusOK, do("/swagger/index.html", "10.0.0.1"))
			assert.Equal(t, http.StatusOK, do("/api/v1/processes", "10.0.0.9"))
		}
	})

	t.Run("disabled limiter passes through", func(t *testing.T) {
		off := middleware.NewRateLimiter(&config.RateLimitConfig{RequestsPerMinute: 1}, zap.NewNop()).Limit(okHandler())
		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			off.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestCORS(t *testing.T) {
	h := middleware.CORS(&config.CORSConfig{
		AllowedOrigins: []string{"https://app.tramitia.com"},
		AllowedMethods: []string{"GET", "POST"},
	}, "production", zap.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	req.Header.Set("Origin", "https://app.tramitia.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.tramitia.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
