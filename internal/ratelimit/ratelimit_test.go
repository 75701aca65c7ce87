package ratelimit

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/recipebook/internal/ipchecker"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			calls:    5,
			wantPass: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst, 0)
			defer rl.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("test") {
					passed++
				}
			}

			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := New(0.001, 1, 0)
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestKeyedRateLimiter_EvictsIdleKeys(t *testing.T) {
	rl := New(1, 1, time.Hour)
	defer rl.Stop()

	current := time.Now()
	rl.now = func() time.Time { return current }

	rl.Allow("old")
	current = current.Add(2 * time.Hour)
	rl.Allow("fresh")

	rl.evictIdle()
	assert.Equal(t, 1, rl.Len())
}

func TestMiddleware(t *testing.T) {
	checker, err := ipchecker.New("10.0.0.0/8")
	require.NoError(t, err)

	rl := New(0.001, 1, 0)
	defer rl.Stop()

	handler := rl.Middleware(checker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remoteAddr string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		request.RemoteAddr = net.JoinHostPort(remoteAddr, "1234")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder
	}

	assert.Equal(t, http.StatusOK, call("192.0.2.1").Code)

	limited := call("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.JSONEq(t, `{"message":"Too many requests"}`, limited.Body.String())

	assert.Equal(t, http.StatusOK, call("192.0.2.2").Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, call("10.1.2.3").Code)
	}
}
