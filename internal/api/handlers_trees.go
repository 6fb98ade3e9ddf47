// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"errors"
	"net/http"

	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/models"
)

// errTreeExists crosses the transaction boundary when the caller already
// owns a tree.
var errTreeExists = errors.New("tree exists")

// HandleTreeCreate creates the caller's tree. POST /api/v1/trees. One tree
// per user: the existence check and the insert share a transaction, so two
// racing creates cannot both land.
func (h *Handler) HandleTreeCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req TreeCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tree := &models.Tree{
		UserID:        userID,
		EncryptedData: req.EncryptedData,
		IsDemo:        req.IsDemo,
	}
	err := h.db.WithTx(r.Context(), func(tx *database.Tx) error {
		has, err := tx.UserHasTree(r.Context(), userID)
		if err != nil {
			return err
		}
		if has {
			return errTreeExists
		}
		return tx.CreateTree(r.Context(), tree)
	})
	if err != nil {
		if errors.Is(err, errTreeExists) {
			respondError(w, http.StatusConflict, "CONFLICT", "Tree already exists", nil)
			return
		}
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, tree)
}

// HandleTreeList returns the caller's trees. GET /api/v1/trees. The list
// holds zero or one element; it is a list so the demo-tree variant has
// room if it ever returns.
func (h *Handler) HandleTreeList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var trees []models.Tree
	err := h.db.WithTx(r.Context(), func(tx *database.Tx) error {
		var err error
		trees, err = tx.ListTreesForUser(r.Context(), userID)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if trees == nil {
		trees = []models.Tree{}
	}
	respondSuccess(w, http.StatusOK, trees)
}

// HandleTreeGet returns one tree with its encrypted payload. GET
// /api/v1/trees/{treeID}.
func (h *Handler) HandleTreeGet(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	var tree *models.Tree
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, t *models.Tree) error {
		tree = t
		return nil
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, tree)
}

// HandleTreeUpdate replaces the tree's metadata blob. PUT
// /api/v1/trees/{treeID}.
func (h *Handler) HandleTreeUpdate(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	var req TreeUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var tree *models.Tree
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		if _, err := tx.UpdateTreeData(r.Context(), treeID, req.EncryptedData); err != nil {
			return err
		}
		// Re-read for the fresh updated_at.
		var err error
		tree, err = tx.GetTreeForUser(r.Context(), treeID, userID)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, tree)
}

// HandleTreeDelete removes the tree and everything hanging off it. DELETE
// /api/v1/trees/{treeID}.
func (h *Handler) HandleTreeDelete(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		return tx.DeleteTree(r.Context(), treeID)
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondNoContent(w)
}

// HandleTreeStats reports row counts per kind. GET
// /api/v1/trees/{treeID}/stats. Counts are structural metadata the server
// already knows; no payload is opened to produce them.
func (h *Handler) HandleTreeStats(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	var stats *models.TreeStats
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		var err error
		stats, err = tx.TreeStats(r.Context(), treeID)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, stats)
}
