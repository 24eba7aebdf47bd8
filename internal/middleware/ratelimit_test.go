package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/expensync/expensync/internal/auth"
	"github.com/expensync/expensync/internal/cache"
	"github.com/expensync/expensync/internal/metrics"
	"github.com/expensync/expensync/internal/testutil"
)

type stubLimiter struct {
	result *cache.RateLimitResult
	err    error
	keys   []string
}

func (l *stubLimiter) CheckUserRateLimit(_ context.Context, userID string, _, _ int) (*cache.RateLimitResult, error) {
	l.keys = append(l.keys, "user:"+userID)
	return l.result, l.err
}

func (l *stubLimiter) CheckIPRateLimit(_ context.Context, ip string, _, _ int) (*cache.RateLimitResult, error) {
	l.keys = append(l.keys, "ip:"+ip)
	return l.result, l.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(userID primitive.ObjectID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	return req.WithContext(auth.ContextWithIdentity(req.Context(), &auth.Identity{UserID: userID}))
}

func TestRateLimitUser(t *testing.T) {
	t.Parallel()

	userID := primitive.NewObjectID()
	reset := time.Now().Add(time.Minute)

	tests := []struct {
		name       string
		result     *cache.RateLimitResult
		err        error
		wantStatus int
		wantLimit  string
	}{
		{"allowed", &cache.RateLimitResult{Allowed: true, Remaining: 9, ResetAt: reset}, nil, http.StatusOK, "60"},
		{"denied", &cache.RateLimitResult{Allowed: false, ResetAt: reset, RetryAfter: 3 * time.Second}, nil, http.StatusTooManyRequests, "60"},
		{"fails open", nil, errors.New("redis down"), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := &stubLimiter{result: tt.result, err: tt.err}
			recorder := metrics.NewInMemory()
			mw := RateLimitUser(RateLimitConfig{
				Logger:            testutil.DiscardLogger(),
				Limiter:           limiter,
				Recorder:          recorder,
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             10,
			})

			rec := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rec, authedRequest(userID))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLimit, rec.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, []string{"user:" + userID.Hex()}, limiter.keys)
			if tt.wantStatus == http.StatusTooManyRequests {
				assert.Equal(t, "3", rec.Header().Get("Retry-After"))
				assert.Contains(t, rec.Body.String(), `"message"`)
				assert.Equal(t, uint64(1), recorder.Snapshot().RateLimited)
			}
		})
	}
}

func TestRateLimitUser_SkipsWhenDisabledOrAnonymous(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{result: &cache.RateLimitResult{Allowed: false}}

	disabled := RateLimitUser(RateLimitConfig{Logger: testutil.DiscardLogger(), Limiter: limiter, RequestsPerMinute: 60})
	rec := httptest.NewRecorder()
	disabled(okHandler()).ServeHTTP(rec, authedRequest(primitive.NewObjectID()))
	assert.Equal(t, http.StatusOK, rec.Code)

	enabled := RateLimitUser(RateLimitConfig{Logger: testutil.DiscardLogger(), Limiter: limiter, Enabled: true, RequestsPerMinute: 60})
	rec = httptest.NewRecorder()
	enabled(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lists", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, limiter.keys)
}

func TestRateLimitIP_UsesForwardedFor(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{result: &cache.RateLimitResult{Allowed: false, RetryAfter: 0}}
	mw := RateLimitIP(RateLimitConfig{
		Logger:              testutil.DiscardLogger(),
		Limiter:             limiter,
		Enabled:             true,
		IPRequestsPerSecond: 5,
		IPBurst:             10,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, []string{"ip:203.0.113.7"}, limiter.keys)
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1:1234", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req))
}
