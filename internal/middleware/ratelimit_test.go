// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKeyByIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:   "remote addr",
			remote: "10.0.0.5:51234",
			want:   "ratelimit:ip:10.0.0.5",
		},
		{
			name:    "last forwarded hop",
			headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"},
			want:    "ratelimit:ip:2.2.2.2",
		},
		{
			name:    "real ip",
			headers: map[string]string{"X-Real-IP": "3.3.3.3"},
			want:    "ratelimit:ip:3.3.3.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.remote != "" {
				req.RemoteAddr = tt.remote
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, KeyByIP(req))
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1"
	assert.Equal(t, "ratelimit:ip:10.0.0.5:auth", KeyByIPAndCategory("auth")(req))
}

func TestSkipHealthChecks(t *testing.T) {
	assert.True(t, SkipHealthChecks(httptest.NewRequest(http.MethodGet, "/readyz", nil)))
	assert.True(t, SkipHealthChecks(httptest.NewRequest(http.MethodGet, "/metrics", nil)))
	assert.False(t, SkipHealthChecks(httptest.NewRequest(http.MethodGet, "/v1/auth/login", nil)))
}

func TestPerWindowDefaultsBurst(t *testing.T) {
	l := PerWindow(10, 0, 15*time.Minute)
	assert.Equal(t, 10, l.Burst)
	assert.Equal(t, 15*time.Minute, l.Period)
}

func TestRateLimiterFallsBackToLocal(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	limiter := NewRateLimiter(rdb, RateLimitConfig{
		Limit:   PerWindow(2, 2, time.Hour),
		KeyFunc: KeyByIPAndCategory("auth"),
	})
	h := limiter.Handler(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.9:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
