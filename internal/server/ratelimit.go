package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	lastSeen   time.Time
}

func (r *rateLimiter) allow(now time.Time) bool {
	r.lastSeen = now
	cutoff := now.Add(-IPRateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= IPRateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// ipLimiter applies one sliding window per client IP, shared by every connection from it.
type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateLimiter
	now     func() time.Time
}

func newIPLimiter() *ipLimiter {
	return &ipLimiter{clients: make(map[string]*rateLimiter), now: time.Now}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl, ok := l.clients[ip]
	if !ok {
		rl = &rateLimiter{}
		l.clients[ip] = rl
	}
	return rl.allow(l.now())
}

// cleanup drops clients idle for longer than IPRateLimitEntryTTL.
func (l *ipLimiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-IPRateLimitEntryTTL)
	removed := 0
	for ip, rl := range l.clients {
		if rl.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

func (l *ipLimiter) runCleanup(done <-chan struct{}) {
	ticker := time.NewTicker(IPRateLimitCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
