package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per API client
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter creates a limiter allowing requestsPerHour per client with the given burst
func NewLimiter(requestsPerHour int, burst int) *Limiter {
	r := rate.Limit(float64(requestsPerHour) / 3600.0)

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// GetLimiter returns the bucket for a client, creating it on first use
func (l *Limiter) GetLimiter(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[clientID]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[clientID] = limiter
	}

	return limiter
}

// Allow reports whether the client may make a request now
func (l *Limiter) Allow(clientID string) bool {
	return l.GetLimiter(clientID).Allow()
}

// Tokens returns the tokens currently available to the client
func (l *Limiter) Tokens(clientID string) float64 {
	return l.GetLimiter(clientID).Tokens()
}
