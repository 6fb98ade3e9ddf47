// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/stemmahq/stemma/internal/config"
	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/metrics"
	"github.com/stemmahq/stemma/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// ClaimsContextKey is the context key for storing validated JWT claims.
const ClaimsContextKey contextKey = "claims"

// Middleware provides JWT authentication and per-IP login rate limiting
// for HTTP handlers.
type Middleware struct {
	jwtManager        *JWTManager
	loginLimiter      *RateLimiter
	rateLimitDisabled bool
}

// NewMiddleware creates authentication middleware. The login limiter
// throttles credential attempts per client IP.
func NewMiddleware(jwtManager *JWTManager, cfg *config.SecurityConfig) *Middleware {
	m := &Middleware{
		jwtManager:        jwtManager,
		loginLimiter:      NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitWindow),
		rateLimitDisabled: cfg.RateLimitDisabled,
	}

	if !m.rateLimitDisabled {
		go m.loginLimiter.startCleanup(5 * time.Minute)
	}

	return m
}

// Authenticate requires a valid access token and stores its claims in
// the request context.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Msg("Token validation failed")
			writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		// Refresh tokens never authorize API calls.
		if claims.TokenType != TokenTypeAccess {
			writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin requires a valid access token whose claims carry the
// is_admin flag.
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !claims.IsAdmin {
			writeAuthError(w, http.StatusForbidden, "Admin access required")
			return
		}

		next(w, r)
	})
}

// RateLimitLogin throttles credential endpoints per client IP.
func (m *Middleware) RateLimitLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimitDisabled {
			next(w, r)
			return
		}

		if !m.loginLimiter.Allow(clientIP(r)) {
			metrics.APIRateLimitHits.WithLabelValues("login").Inc()
			writeAuthError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next(w, r)
	}
}

// Stop stops the rate limiter cleanup goroutine.
func (m *Middleware) Stop() {
	m.loginLimiter.Stop()
}

// ClaimsFromContext extracts validated claims from a request context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}

	return parts[1], nil
}

// clientIP returns the request's client address without the port.
// Chi's RealIP middleware has already resolved X-Forwarded-For upstream.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	code := "AUTHENTICATION_ERROR"
	switch status {
	case http.StatusForbidden:
		code = "AUTHORIZATION_ERROR"
	case http.StatusTooManyRequests:
		code = "RATE_LIMIT_EXCEEDED"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response is already committed
	json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}
