package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	handler := CORS("*")(okHandler())

	t.Run("Preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/checkout", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "apikey")
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
		assert.Empty(t, w.Body.String())
	})

	t.Run("Normal request", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Configured origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		CORS("https://shop.example.fr")(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))

		assert.Equal(t, "https://shop.example.fr", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimiter(t *testing.T) {
	send := func(h http.Handler, method, path, ip string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("Strict tier on checkout", func(t *testing.T) {
		h := NewRateLimiter().Middleware(okHandler())

		for i := 0; i < burstStrict; i++ {
			assert.Equal(t, http.StatusOK, send(h, http.MethodPost, "/checkout", "10.0.0.1"))
		}
		assert.Equal(t, http.StatusTooManyRequests, send(h, http.MethodPost, "/checkout", "10.0.0.1"))

		// another client keeps its own bucket
		assert.Equal(t, http.StatusOK, send(h, http.MethodPost, "/checkout", "10.0.0.2"))
	})

	t.Run("Webhooks are never throttled", func(t *testing.T) {
		h := NewRateLimiter().Middleware(okHandler())

		for i := 0; i < burstGeneral*2; i++ {
			assert.Equal(t, http.StatusOK, send(h, http.MethodPost, "/webhook/stripe", "10.0.0.1"))
		}
	})

	t.Run("Preflight is not counted", func(t *testing.T) {
		h := NewRateLimiter().Middleware(okHandler())

		for i := 0; i < burstStrict*2; i++ {
			assert.Equal(t, http.StatusOK, send(h, http.MethodOptions, "/checkout", "10.0.0.3"))
		}
		assert.Equal(t, http.StatusOK, send(h, http.MethodPost, "/checkout", "10.0.0.3"))
	})
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.get("ip:1:general", limitGeneral, burstGeneral)
	assert.Len(t, rl.visitors, 1)

	now = now.Add(visitorTTL + time.Second)
	rl.cleanup()
	assert.Empty(t, rl.visitors)
}
