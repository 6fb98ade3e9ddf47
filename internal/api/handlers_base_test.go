// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/stemmahq/stemma/internal/auth"
	"github.com/stemmahq/stemma/internal/capacity"
	"github.com/stemmahq/stemma/internal/config"
	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/mailer"
	"github.com/stemmahq/stemma/internal/models"
	syncpkg "github.com/stemmahq/stemma/internal/sync"
)

// testDBSemaphore serializes database lifecycles. Concurrent DuckDB CGO
// calls from parallel tests can hang under CI resource pressure, so only
// one test holds an open database at a time.
var testDBSemaphore = make(chan struct{}, 1)

const testPassword = "correct-horse-battery-staple"

// testEnv bundles a handler with its real dependencies and the fully
// wired router, so tests exercise routing, middleware, and handlers the
// way production requests do.
type testEnv struct {
	cfg     *config.Config
	db      *database.DB
	tokens  *auth.TokenStore
	jwt     *auth.JWTManager
	handler *Handler
	mux     http.Handler
}

func newTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        8640,
			Timeout:     30 * time.Second,
			BaseURL:     "http://localhost:8640",
			Environment: "development",
		},
		Database: config.DatabaseConfig{
			Path:      ":memory:",
			MaxMemory: "512MB",
		},
		Security: config.SecurityConfig{
			JWTSecret:       "test_secret_with_at_least_32_characters_for_testing",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 168 * time.Hour,
			// Minimum bcrypt cost keeps registration-heavy tests fast.
			BcryptCost:        4,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
		SMTP: config.SMTPConfig{
			OperatorEmail: "operator@example.com",
		},
	}
}

// newTestEnv builds a complete API stack on an in-memory database. Config
// mutators run before any component is constructed, so tests can flip
// SMTP, capacity, or rate limit settings.
func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := newTestConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("database.New failed: %v", err)
	}
	t.Cleanup(func() {
		// Best-effort: some tests close the database early to exercise
		// failure paths.
		_ = db.Close()
	})

	tokens, err := auth.OpenTokenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenTokenStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = tokens.Close()
	})

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}

	handler := NewHandler(
		db,
		cfg,
		jwtManager,
		auth.NewPasswordHasher(&cfg.Security),
		tokens,
		syncpkg.New(db, nil),
		capacity.New(db, &cfg.Capacity),
		mailer.NewTasks(mailer.NewPubSub()),
	)

	router := NewRouter(handler, auth.NewMiddleware(jwtManager, &cfg.Security), NewChiMiddleware(&cfg.Security))

	return &testEnv{
		cfg:     cfg,
		db:      db,
		tokens:  tokens,
		jwt:     jwtManager,
		handler: handler,
		mux:     router.SetupChi(),
	}
}

// do sends a JSON request through the full router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		rd = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors models.APIResponse with raw data so tests can decode
// the payload into typed structs.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error,omitempty"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response envelope: %v", err)
	}
	return env
}

// decodeData asserts a success envelope and unmarshals its data payload.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()

	env := decodeEnvelope(t, rec)
	if env.Status != "success" {
		t.Fatalf("Expected success envelope, got %q (error: %+v)", env.Status, env.Error)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("Failed to decode data payload: %v", err)
	}
}

// wantError asserts status code and error code and returns the error payload.
func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) *models.APIError {
	t.Helper()

	if rec.Code != status {
		t.Fatalf("Expected status %d, got %d (body: %s)", status, rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Status != "error" {
		t.Fatalf("Expected error envelope, got %q", env.Status)
	}
	if env.Error == nil {
		t.Fatal("Expected error payload, got none")
	}
	if env.Error.Code != code {
		t.Errorf("Expected error code %q, got %q (message: %s)", code, env.Error.Code, env.Error.Message)
	}
	return env.Error
}

// registerUser registers an account and returns its token pair. The
// default test config has SMTP disabled, so accounts are verified at once.
func registerUser(t *testing.T, env *testEnv, email string) TokenResponse {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Email:          email,
		Password:       testPassword,
		EncryptionSalt: "c2FsdA==",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Register returned %d: %s", rec.Code, rec.Body.String())
	}

	var tok TokenResponse
	decodeData(t, rec, &tok)
	if tok.AccessToken == "" {
		t.Fatal("Register returned no access token")
	}
	return tok
}

// adminToken registers an account and mints an admin access token for it.
// Admin status is carried in claims, so the token alone grants access.
func adminToken(t *testing.T, env *testEnv) string {
	t.Helper()

	registerUser(t, env, "admin@example.com")
	user, err := env.db.GetUserByEmail(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}

	token, err := env.jwt.GenerateAccessToken(user.ID, true)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	return token
}

// createTree creates the caller's tree and returns it.
func createTree(t *testing.T, env *testEnv, token string) models.Tree {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/v1/trees", token, TreeCreateRequest{
		EncryptedData: "tree-blob",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Tree create returned %d: %s", rec.Code, rec.Body.String())
	}

	var tree models.Tree
	decodeData(t, rec, &tree)
	return tree
}

// createPerson creates a person in the given tree and returns it.
func createPerson(t *testing.T, env *testEnv, token string, treeID string) models.Person {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/v1/trees/"+treeID+"/persons", token, PersonCreateRequest{
		EncryptedData: "person-blob",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Person create returned %d: %s", rec.Code, rec.Body.String())
	}

	var person models.Person
	decodeData(t, rec, &person)
	return person
}

// TestNewHandler tests the NewHandler constructor
func TestNewHandler(t *testing.T) {
	cfg := newTestConfig()

	handler := NewHandler(nil, cfg, nil, nil, nil, nil, nil, nil)

	if handler == nil {
		t.Fatal("NewHandler returned nil")
	}
	if handler.config != cfg {
		t.Error("Expected config to be stored")
	}
	if handler.startTime.IsZero() {
		t.Error("Expected start time to be set")
	}
	if handler.wsHub != nil {
		t.Error("Expected wsHub to be nil until SetWebSocketHub")
	}
}

// TestCheckWebSocketOrigin tests the WebSocket origin validation
func TestCheckWebSocketOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		corsOrigins    []string
		requestOrigin  string
		expectedResult bool
	}{
		{
			name:           "no origin header - reject",
			corsOrigins:    []string{"http://localhost:8640"},
			requestOrigin:  "",
			expectedResult: false,
		},
		{
			name:           "wildcard origin - allow any",
			corsOrigins:    []string{"*"},
			requestOrigin:  "http://example.com",
			expectedResult: true,
		},
		{
			name:           "exact match - allow",
			corsOrigins:    []string{"http://localhost:8640"},
			requestOrigin:  "http://localhost:8640",
			expectedResult: true,
		},
		{
			name:           "multiple origins - match first",
			corsOrigins:    []string{"http://localhost:8640", "http://example.com"},
			requestOrigin:  "http://localhost:8640",
			expectedResult: true,
		},
		{
			name:           "multiple origins - match second",
			corsOrigins:    []string{"http://localhost:8640", "http://example.com"},
			requestOrigin:  "http://example.com",
			expectedResult: true,
		},
		{
			name:           "origin not in list - reject",
			corsOrigins:    []string{"http://localhost:8640"},
			requestOrigin:  "http://evil.com",
			expectedResult: false,
		},
		{
			name:           "empty allowed origins - reject",
			corsOrigins:    []string{},
			requestOrigin:  "http://example.com",
			expectedResult: false,
		},
		{
			name:           "origin with different port - reject",
			corsOrigins:    []string{"http://localhost:8640"},
			requestOrigin:  "http://localhost:8080",
			expectedResult: false,
		},
		{
			name:           "origin with different protocol - reject",
			corsOrigins:    []string{"http://localhost:8640"},
			requestOrigin:  "https://localhost:8640",
			expectedResult: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Security: config.SecurityConfig{
					CORSOrigins: tt.corsOrigins,
				},
			}

			handler := &Handler{config: cfg}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}

			result := handler.checkWebSocketOrigin(req)

			if result != tt.expectedResult {
				t.Errorf("checkWebSocketOrigin() = %v, want %v", result, tt.expectedResult)
			}
		})
	}
}

// TestGetUpgrader tests the WebSocket upgrader configuration
func TestGetUpgrader(t *testing.T) {
	t.Parallel()

	handler := &Handler{
		config: &config.Config{
			Security: config.SecurityConfig{CORSOrigins: []string{"*"}},
		},
	}

	upgrader := handler.getUpgrader()

	if upgrader.ReadBufferSize != 1024 {
		t.Errorf("ReadBufferSize = %d, want 1024", upgrader.ReadBufferSize)
	}
	if upgrader.WriteBufferSize != 1024 {
		t.Errorf("WriteBufferSize = %d, want 1024", upgrader.WriteBufferSize)
	}
	if upgrader.CheckOrigin == nil {
		t.Error("CheckOrigin function should be set")
	}
}

// TestHandleWebSocket_NoHub tests GET /ws before a hub is attached
func TestHandleWebSocket_NoHub(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "ws@example.com")

	rec := env.do(t, http.MethodGet, "/api/v1/ws", tok.AccessToken, nil)
	wantError(t, rec, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
}

// TestAuthenticationRequired verifies protected routes reject anonymous
// and malformed credentials uniformly.
func TestAuthenticationRequired(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/trees"},
		{http.MethodGet, "/api/v1/trees"},
		{http.MethodPost, "/api/v1/feedback"},
		{http.MethodGet, "/api/v1/admin/stats"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := env.do(t, rt.method, rt.path, "", nil)
			wantError(t, rec, http.StatusUnauthorized, "AUTHENTICATION_ERROR")

			rec = env.do(t, rt.method, rt.path, "not-a-token", nil)
			wantError(t, rec, http.StatusUnauthorized, "AUTHENTICATION_ERROR")
		})
	}
}

// TestRefreshTokenRejectedAsBearer verifies refresh tokens cannot call
// the API directly.
func TestRefreshTokenRejectedAsBearer(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "bearer@example.com")

	rec := env.do(t, http.MethodGet, "/api/v1/auth/me", tok.RefreshToken, nil)
	wantError(t, rec, http.StatusUnauthorized, "AUTHENTICATION_ERROR")
}

// BenchmarkCheckWebSocketOrigin benchmarks the origin checking function
func BenchmarkCheckWebSocketOrigin(b *testing.B) {
	handler := &Handler{
		config: &config.Config{
			Security: config.SecurityConfig{
				CORSOrigins: []string{
					"http://localhost:8640",
					"http://example.com",
					"https://app.example.com",
				},
			},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	req.Header.Set("Origin", "http://example.com")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.checkWebSocketOrigin(req)
	}
}
