// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/stemmahq/stemma/internal/config"
	"github.com/stemmahq/stemma/internal/metrics"
)

// RateLimitConfig sets one route group's per-IP request budget.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Fixed budgets per route group. Credential endpoints are tight; health
// stays loose for load balancer probes. General API traffic uses the
// configured budget instead, and login has its own limiter in the auth
// middleware.
var (
	rateLimitAuth      = RateLimitConfig{Requests: 5, Window: time.Minute}
	rateLimitSync      = RateLimitConfig{Requests: 10, Window: time.Minute}
	rateLimitHealth    = RateLimitConfig{Requests: 1000, Window: time.Minute}
	rateLimitWebSocket = RateLimitConfig{Requests: 30, Window: time.Minute}
)

// ChiMiddleware bundles the route-group middleware the router attaches:
// CORS and the per-group rate limiters.
type ChiMiddleware struct {
	security *config.SecurityConfig
	cors     func(http.Handler) http.Handler
}

// NewChiMiddleware builds shared middleware from the security config.
func NewChiMiddleware(security *config.SecurityConfig) *ChiMiddleware {
	return &ChiMiddleware{
		security: security,
		cors: cors.Handler(cors.Options{
			AllowedOrigins:   security.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	}
}

// CORS returns the shared CORS handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitAuth covers register, refresh, and verification endpoints.
func (m *ChiMiddleware) RateLimitAuth() func(http.Handler) http.Handler {
	return m.RateLimitCustom(rateLimitAuth)
}

// RateLimitSync covers the sync endpoint. Batches are heavyweight; clients
// coalesce offline work rather than submitting per keystroke.
func (m *ChiMiddleware) RateLimitSync() func(http.Handler) http.Handler {
	return m.RateLimitCustom(rateLimitSync)
}

// RateLimitAPI covers general CRUD traffic with the configured budget.
func (m *ChiMiddleware) RateLimitAPI() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitConfig{
		Requests: m.security.RateLimitReqs,
		Window:   m.security.RateLimitWindow,
	})
}

// RateLimitHealth covers the health endpoint.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.RateLimitCustom(rateLimitHealth)
}

// RateLimitWebSocket covers websocket upgrades.
func (m *ChiMiddleware) RateLimitWebSocket() func(http.Handler) http.Handler {
	return m.RateLimitCustom(rateLimitWebSocket)
}

// RateLimitCustom builds a per-IP limiter for one route group, or a
// pass-through when rate limiting is disabled.
func (m *ChiMiddleware) RateLimitCustom(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if m.security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// rateLimitExceeded reports 429 in the standard envelope and counts the
// rejection under the route pattern, not the raw path, to keep metric
// cardinality bounded.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			endpoint = pattern
		}
	}
	metrics.APIRateLimitHits.WithLabelValues(endpoint).Inc()

	respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded", nil)
}

// APISecurityHeaders sets browser hardening headers on every response.
// Responses hold per-user ciphertext, so everything is marked no-store.
// HSTS is sent only on TLS or behind a TLS-terminating proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Cache-Control", "no-store")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// chiMiddleware adapts an http.HandlerFunc middleware to chi's
// http.Handler middleware signature.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// chiPathValue copies chi's route parameters into the request's PathValue
// table so handlers stay mux-agnostic.
func chiPathValue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				r.SetPathValue(key, rctx.URLParams.Values[i])
			}
		}
		next.ServeHTTP(w, r)
	})
}
