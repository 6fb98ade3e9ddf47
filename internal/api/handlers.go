// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/auth"
	"github.com/stemmahq/stemma/internal/capacity"
	"github.com/stemmahq/stemma/internal/config"
	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/mailer"
	"github.com/stemmahq/stemma/internal/middleware"
	"github.com/stemmahq/stemma/internal/models"
	syncpkg "github.com/stemmahq/stemma/internal/sync"
	"github.com/stemmahq/stemma/internal/websocket"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	db         *database.DB
	config     *config.Config
	jwtManager *auth.JWTManager
	passwords  *auth.PasswordHasher
	tokens     *auth.TokenStore
	reconciler *syncpkg.Reconciler
	gate       *capacity.Gate
	mail       *mailer.Tasks
	wsHub      *websocket.Hub
	perf       *middleware.PerformanceMonitor
	startTime  time.Time
}

// NewHandler wires the endpoint dependencies together.
func NewHandler(
	db *database.DB,
	cfg *config.Config,
	jwtManager *auth.JWTManager,
	passwords *auth.PasswordHasher,
	tokens *auth.TokenStore,
	reconciler *syncpkg.Reconciler,
	gate *capacity.Gate,
	mail *mailer.Tasks,
) *Handler {
	return &Handler{
		db:         db,
		config:     cfg,
		jwtManager: jwtManager,
		passwords:  passwords,
		tokens:     tokens,
		reconciler: reconciler,
		gate:       gate,
		mail:       mail,
		startTime:  time.Now(),
	}
}

// SetWebSocketHub attaches the hub serving GET /ws. Without one the
// endpoint reports 503.
func (h *Handler) SetWebSocketHub(hub *websocket.Hub) {
	h.wsHub = hub
}

// SetPerformanceMonitor attaches the in-memory latency aggregator exposed
// through the admin performance endpoint.
func (h *Handler) SetPerformanceMonitor(pm *middleware.PerformanceMonitor) {
	h.perf = pm
}

// currentUserID extracts the authenticated user id from the request
// context. The auth middleware guarantees claims exist on every route this
// is called from, so a miss is a wiring bug reported as 500.
func currentUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error",
			errors.New("no auth claims in request context"))
		return uuid.Nil, false
	}

	userID, err := claims.UserID()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return uuid.Nil, false
	}
	return userID, true
}

// withOwnedTree runs fn in one transaction after resolving that the caller
// owns the tree. A tree that is absent or owned by someone else surfaces
// as database.ErrNotFound before fn runs, so both cases leave the server
// identically: 404 "Tree not found".
func (h *Handler) withOwnedTree(ctx context.Context, userID, treeID uuid.UUID, fn func(tx *database.Tx, tree *models.Tree) error) error {
	return h.db.WithTx(ctx, func(tx *database.Tx) error {
		tree, err := tx.GetTreeForUser(ctx, treeID, userID)
		if err != nil {
			return err
		}
		return fn(tx, tree)
	})
}

// treeScope parses {treeID} and the caller's identity. Returns false after
// writing the error response.
func treeScope(w http.ResponseWriter, r *http.Request) (userID, treeID uuid.UUID, ok bool) {
	userID, ok = currentUserID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	treeID, ok = pathUUID(w, r, "treeID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, treeID, true
}
