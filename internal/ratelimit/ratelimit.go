// Package ratelimit bounds chat requests per user with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter allows Requests per Window for each actor, refilling continuously.
type Limiter struct {
	limit  rate.Limit
	burst  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

func New(requests int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow consumes one request for actor. When denied it reports how long
// until the next request would be allowed.
func (l *Limiter) Allow(actor string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	c, ok := l.clients[actor]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[actor] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, l.window
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep drops actors idle for longer than a window. Their buckets are full
// again so forgetting them changes nothing.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for actor, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, actor)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
