package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RateLimitConfig bounds login code requests per client address with a token
// bucket. The address is RemoteAddr as left by TrustedRealIP.
type RateLimitConfig struct {
	Burst      int           // requests allowed back to back
	PerMinute  int           // tokens regained per minute
	MaxClients int           // addresses tracked at once; least recently seen are evicted
	IdleTTL    time.Duration // addresses idle this long are forgotten
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.PerMinute < 1 {
		c.PerMinute = 1
	}
	if c.MaxClients < 1 {
		c.MaxClients = 10000
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 15 * time.Minute
	}
	return c
}

type allowance struct {
	tokens float64
	seen   time.Time // last request, also the last refill
}

type loginLimiter struct {
	cfg    RateLimitConfig
	perSec float64

	mu      sync.Mutex
	clients map[string]*allowance
	swept   time.Time
}

func newLoginLimiter(cfg RateLimitConfig) *loginLimiter {
	cfg = cfg.withDefaults()
	return &loginLimiter{
		cfg:     cfg,
		perSec:  float64(cfg.PerMinute) / 60,
		clients: make(map[string]*allowance),
		swept:   time.Now(),
	}
}

// take spends one token for key. When none is left it reports how long until
// the next one.
func (l *loginLimiter) take(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.cfg.IdleTTL {
		l.forgetIdle(now)
	}

	a, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= l.cfg.MaxClients {
			l.evict(now)
		}
		a = &allowance{tokens: float64(l.cfg.Burst), seen: now}
		l.clients[key] = a
	} else {
		if elapsed := now.Sub(a.seen).Seconds(); elapsed > 0 {
			a.tokens = math.Min(float64(l.cfg.Burst), a.tokens+elapsed*l.perSec)
		}
		a.seen = now
	}

	if a.tokens >= 1 {
		a.tokens--
		return true, 0
	}
	return false, time.Duration((1 - a.tokens) / l.perSec * float64(time.Second))
}

func (l *loginLimiter) forgetIdle(now time.Time) {
	for k, a := range l.clients {
		if now.Sub(a.seen) > l.cfg.IdleTTL {
			delete(l.clients, k)
		}
	}
	l.swept = now
}

// evict makes room for a new address: idle entries go first, then the least
// recently seen until an eighth of the table is free.
func (l *loginLimiter) evict(now time.Time) {
	l.forgetIdle(now)
	if len(l.clients) < l.cfg.MaxClients {
		return
	}
	keys := make([]string, 0, len(l.clients))
	for k := range l.clients {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return l.clients[a].seen.Compare(l.clients[b].seen)
	})
	keep := l.cfg.MaxClients - max(1, l.cfg.MaxClients/8)
	for _, k := range keys[:len(keys)-keep] {
		delete(l.clients, k)
	}
}

// RateLimit rejects requests over the per-address budget with 429 and Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return newLoginLimiter(cfg).middleware
}

func (l *loginLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := l.take(clientIP(r), time.Now()); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
			writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TrustedRealIP applies chi's RealIP only to requests whose peer is one of
// proxies. Forwarding headers from anyone else are ignored, so clients cannot
// pick their own address.
func TrustedRealIP(proxies []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		forwarded := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fromProxy(r.RemoteAddr, proxies) {
				forwarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromProxy(remoteAddr string, proxies []netip.Prefix) bool {
	if len(proxies) == 0 {
		return false
	}
	ap, err := netip.ParseAddrPort(remoteAddr)
	if err != nil {
		return false
	}
	addr := ap.Addr().Unmap()
	for _, p := range proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies parses CIDR prefixes or bare addresses.
func ParseTrustedProxies(specs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
