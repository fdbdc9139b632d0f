package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"folio/pkg/middleware"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitPerClient(t *testing.T) {
	store := middleware.NewLimiterStore(1, 1, time.Minute)
	defer store.Stop()
	handler := middleware.RateLimit(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "burst of one admits a single request")

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodPost, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimiterStoreAllow(t *testing.T) {
	store := middleware.NewLimiterStore(1, 2, time.Minute)
	defer store.Stop()

	assert.True(t, store.Allow("k"))
	assert.True(t, store.Allow("k"))
	assert.False(t, store.Allow("k"))
}
