// Package ratelimit keeps one token bucket per client key and provides an
// HTTP middleware that rejects clients which ran out of tokens.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/patric-chuzhbe/recipebook/internal/logger"
	"github.com/patric-chuzhbe/recipebook/internal/models"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter manages per-key rate limiting.
// Keys not seen for idleTTL are forgotten.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter allowing rps requests per second per key with the
// given burst. A positive idleTTL starts a goroutine that evicts idle keys;
// call Stop to end it.
func New(rps float64, burst int, idleTTL time.Duration) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	if idleTTL > 0 {
		go krl.cleanup()
	}

	return krl
}

// Allow reports whether a request for key may proceed now.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	krl.mu.Lock()
	e, exists := krl.entries[key]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.entries[key] = e
	}
	e.lastSeen = krl.now()
	krl.mu.Unlock()

	return e.limiter.Allow()
}

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	return len(krl.entries)
}

// Stop shuts down the cleanup goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

func (krl *KeyedRateLimiter) cleanup() {
	ticker := time.NewTicker(krl.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.evictIdle()
		}
	}
}

func (krl *KeyedRateLimiter) evictIdle() {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	deadline := krl.now().Add(-krl.idleTTL)
	for key, e := range krl.entries {
		if e.lastSeen.Before(deadline) {
			delete(krl.entries, key)
		}
	}
}

type clientResolver interface {
	GetClientIP(request *http.Request) (net.IP, error)
	Check(clientIP net.IP) bool
}

// Middleware limits requests per client IP. Clients the resolver reports as
// trusted are never limited. Rejected requests get 429.
func (krl *KeyedRateLimiter) Middleware(resolver clientResolver) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			key := request.RemoteAddr
			clientIP, err := resolver.GetClientIP(request)
			if err != nil || clientIP == nil {
				logger.Log.Debugln("Error calling the `resolver.GetClientIP()`: ", zap.Error(err))
			} else {
				if resolver.Check(clientIP) {
					h.ServeHTTP(response, request)
					return
				}
				key = clientIP.String()
			}

			if !krl.Allow(key) {
				logger.Log.Infow("Rate limit exceeded", "ip", key, "path", request.URL.Path)
				response.Header().Set("Content-Type", "application/json")
				response.WriteHeader(http.StatusTooManyRequests)
				if err := json.NewEncoder(response).Encode(models.MessageResponse{Message: "Too many requests"}); err != nil {
					logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
				}
				return
			}

			h.ServeHTTP(response, request)
		}

		return http.HandlerFunc(middleware)
	}
}
