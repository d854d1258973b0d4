// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/subtle"
	"fmt"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// AUTH CONFIGURATION AND MIDDLEWARE
// =============================================================================

// AuthConfig contains authentication configuration options.
type AuthConfig struct {
	// Enabled indicates whether authentication is required.
	Enabled bool

	// BearerToken is the expected bearer token. If empty and Enabled is
	// true, all requests are rejected.
	BearerToken string

	// AllowedIPs is a list of IP addresses or CIDR ranges allowed access.
	// Empty allows all IPs (subject to token authentication).
	AllowedIPs []string

	parsedCIDRs []*net.IPNet
	parsedOnce  sync.Once
}

// DefaultAuthConfig returns an AuthConfig with authentication disabled.
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{}
}

// parseCIDRs parses AllowedIPs into net.IPNet for efficient matching.
func (c *AuthConfig) parseCIDRs() {
	c.parsedOnce.Do(func() {
		c.parsedCIDRs = make([]*net.IPNet, 0, len(c.AllowedIPs))
		for _, ipStr := range c.AllowedIPs {
			if strings.Contains(ipStr, "/") {
				_, ipNet, err := net.ParseCIDR(ipStr)
				if err == nil {
					c.parsedCIDRs = append(c.parsedCIDRs, ipNet)
				} else {
					log.Printf("AUTH_CONFIG | invalid CIDR: %s", ipStr)
				}
				continue
			}

			// Single IP becomes a host-sized CIDR
			ip := net.ParseIP(ipStr)
			if ip == nil {
				log.Printf("AUTH_CONFIG | invalid IP: %s", ipStr)
				continue
			}
			var mask net.IPMask
			if ip.To4() != nil {
				mask = net.CIDRMask(32, 32)
			} else {
				mask = net.CIDRMask(128, 128)
			}
			c.parsedCIDRs = append(c.parsedCIDRs, &net.IPNet{IP: ip, Mask: mask})
		}
	})
}

// isIPAllowed checks if the given IP address is in the allowlist.
func (c *AuthConfig) isIPAllowed(ipStr string) bool {
	if len(c.AllowedIPs) == 0 {
		return true
	}

	c.parseCIDRs()

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, cidr := range c.parsedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// AuthMiddleware returns HTTP middleware that authenticates requests.
//
// Checks, in order: IP allowlist (if configured), then the Authorization
// bearer token. Token comparison is constant-time.
func AuthMiddleware(config *AuthConfig, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := GetClientIP(r)
			if !config.isIPAllowed(clientIP) {
				logger.Printf("AUTH_DENIED | ip=%s reason=ip_not_allowed", clientIP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				logger.Printf("AUTH_DENIED | ip=%s reason=missing_bearer", clientIP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if !ValidateBearerToken(token, config.BearerToken) {
				logger.Printf("AUTH_DENIED | ip=%s reason=invalid_token", clientIP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ValidateBearerToken compares tokens in constant time to prevent
// timing attacks. Empty tokens never validate.
func ValidateBearerToken(token, expected string) bool {
	if token == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// =============================================================================
// CORS CONFIGURATION AND MIDDLEWARE
// =============================================================================

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// AllowedOrigins lists allowed origins. "*" allows everything.
	AllowedOrigins []string

	// AllowedMethods lists allowed HTTP methods.
	AllowedMethods []string

	// AllowedHeaders lists allowed request headers.
	AllowedHeaders []string

	// MaxAge is the preflight cache age in seconds.
	MaxAge int
}

// DefaultCORSConfig allows localhost origins only.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: []string{
			"http://localhost",
			"http://localhost:3000",
			"http://localhost:8080",
			"http://127.0.0.1",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:8080",
		},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}
}

// isOriginAllowed checks the origin against the allowlist. Supports
// exact matches, "*", and "*.example.com" wildcards.
func (c *CORSConfig) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if strings.HasPrefix(allowed, "*.") {
			domain := strings.TrimPrefix(allowed, "*")
			if strings.HasSuffix(origin, domain) {
				return true
			}
		}
	}
	return false
}

// CORSMiddleware returns HTTP middleware that handles CORS headers and
// preflight OPTIONS requests.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if config.isOriginAllowed(origin) {
				allowOrigin := origin
				for _, allowed := range config.AllowedOrigins {
					if allowed == "*" {
						allowOrigin = "*"
						break
					}
				}
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", config.MaxAge))
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// RATE LIMITER
// =============================================================================

// RateLimiter enforces a token-bucket limit per client IP.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	mu       sync.Mutex

	// lastSeen supports eviction of idle clients.
	lastSeen map[string]time.Time
}

// NewRateLimiter creates a per-IP limiter. Non-positive values fall
// back to 10 rps with a burst of 20.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}

	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rps:      rate.Limit(rps),
		burst:    burst,
	}

	go rl.evictLoop()
	return rl
}

// DefaultRateLimiter returns a limiter with the fallback settings.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(0, 0)
}

// Allow reports whether a request from the given IP may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.limiterFor(ip).Allow()
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[ip] = lim
	}
	rl.lastSeen[ip] = time.Now()
	return lim
}

// evictLoop drops limiters for clients idle longer than ten minutes.
func (rl *RateLimiter) evictLoop() {
	const idleTTL = 10 * time.Minute

	ticker := time.NewTicker(idleTTL)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-idleTTL)
		rl.mu.Lock()
		for ip, seen := range rl.lastSeen {
			if seen.Before(cutoff) {
				delete(rl.limiters, ip)
				delete(rl.lastSeen, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware returns HTTP middleware that enforces the per-IP
// limit, answering 429 with a Retry-After when exceeded.
func RateLimitMiddleware(limiter *RateLimiter, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := GetClientIP(r)

			if !limiter.Allow(clientIP) {
				w.Header().Set("Retry-After", "1")
				logger.Printf("RATE_LIMIT_EXCEEDED | ip=%s", clientIP)
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// REQUEST LOGGING MIDDLEWARE
// =============================================================================

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes the Flusher interface through so SSE streaming survives
// the wrapping.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware returns HTTP middleware that logs every request.
//
// Log format: "POST /v1/chat/completions | 200 | 1.234s"
func LoggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			logger.Printf("%s %s | %d | %.3fs",
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				time.Since(start).Seconds(),
			)
		})
	}
}

// =============================================================================
// SECURITY HEADERS MIDDLEWARE
// =============================================================================

// SecurityHeadersMiddleware returns HTTP middleware that adds standard
// hardening headers to every response.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Content-Security-Policy", "default-src 'self'")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// RECOVERY MIDDLEWARE
// =============================================================================

// RecoveryMiddleware returns HTTP middleware that recovers from panics
// in downstream handlers, logging the stack and answering 500.
func RecoveryMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Printf("PANIC_RECOVERED | method=%s path=%s error=%v\n%s",
						r.Method, r.URL.Path, err, debug.Stack())
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// MIDDLEWARE CHAIN HELPER
// =============================================================================

// Chain composes middleware functions into one. Middlewares execute in
// the order provided.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// =============================================================================
// IP EXTRACTION
// =============================================================================

// trustedProxies lists CIDR ranges whose X-Forwarded-For / X-Real-IP
// headers are believed. Forwarded headers from anywhere else are
// ignored so rate limits and allowlists cannot be spoofed.
var trustedProxies = []string{
	"127.0.0.1/32",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
}

var (
	parsedTrustedProxies []*net.IPNet
	trustedProxiesOnce   sync.Once
)

func parseTrustedProxies() {
	trustedProxiesOnce.Do(func() {
		parsedTrustedProxies = make([]*net.IPNet, 0, len(trustedProxies))
		for _, cidr := range trustedProxies {
			if _, ipNet, err := net.ParseCIDR(cidr); err == nil {
				parsedTrustedProxies = append(parsedTrustedProxies, ipNet)
			}
		}
	})
}

func isTrustedProxy(ipStr string) bool {
	parseTrustedProxies()

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range parsedTrustedProxies {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// getRemoteIP extracts the IP from "IP:port" or "[IPv6]:port".
func getRemoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// GetClientIP extracts the client IP from an HTTP request. Forwarded
// headers are only honored when the direct peer is a trusted proxy,
// and any forwarded value must parse as an IP.
func GetClientIP(r *http.Request) string {
	connIP := getRemoteIP(r.RemoteAddr)

	if !isTrustedProxy(connIP) {
		return connIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if net.ParseIP(clientIP) != nil {
				return clientIP
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	return connIP
}
