package devserver

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// LimitConfig bounds how many requests one client may make per window.
type LimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables the limit.
	Max    int           `default:"10" usage:"Login attempts per client and window" flag:"login-limit"`
	Window time.Duration `default:"1m" usage:"Login attempt window" flag:"login-window"`
}

// Enabled reports whether the limit applies.
func (c LimitConfig) Enabled() bool { return c.Max > 0 }

func (c LimitConfig) validate() error {
	if c.Enabled() && c.Window <= 0 {
		return errors.Errorf("login window must be positive, got %s", c.Window)
	}
	return nil
}

// window counts requests of one client in the current and previous window.
type window struct {
	prev      float64
	curr      float64
	currStart time.Time
}

// Limiter is a per-client sliding window limiter.
type Limiter struct {
	cfg LimitConfig
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

// NewLimiter creates a Limiter. The window of cfg must be positive.
func NewLimiter(cfg LimitConfig) (*Limiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*window),
	}, nil
}

// allow records a request from key and reports whether it fits the limit,
// along with the time the current window ends.
func (l *Limiter) allow(key string) (bool, time.Time) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[key]
	if !ok {
		w = &window{currStart: now.Truncate(l.cfg.Window)}
		l.clients[key] = w
	}
	if elapsed := now.Sub(w.currStart); elapsed >= l.cfg.Window {
		w.prev = w.curr
		if elapsed >= 2*l.cfg.Window {
			w.prev = 0
		}
		w.curr = 0
		w.currStart = now.Truncate(l.cfg.Window)
	}

	// The previous window counts in proportion to its overlap with the
	// sliding window ending now.
	overlap := 1 - now.Sub(w.currStart).Seconds()/l.cfg.Window.Seconds()
	effective := w.prev*math.Max(overlap, 0) + w.curr
	resetAt := w.currStart.Add(l.cfg.Window)
	if effective >= float64(l.cfg.Max) {
		return false, resetAt
	}
	w.curr++
	return true, resetAt
}

// sweep forgets clients idle for two full windows.
func (l *Limiter) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.currStart) >= 2*l.cfg.Window {
			delete(l.clients, key)
		}
	}
}

// Run sweeps idle clients until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// Middleware answers 429 once a client exceeds the limit.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, resetAt := l.allow(clientIP(r))
			if !ok {
				retry := max(time.Until(resetAt), 0)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeDetail(w, http.StatusTooManyRequests, "too many attempts, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
