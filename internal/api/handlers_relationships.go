// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/models"
	syncpkg "github.com/stemmahq/stemma/internal/sync"
)

// HandleRelationshipCreate links two persons. POST
// /api/v1/trees/{treeID}/relationships. Both endpoints must already be
// members of the tree; the failing field is named in the 422.
func (h *Handler) HandleRelationshipCreate(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	var req RelationshipCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rel := &models.Relationship{
		ID:             req.ID,
		TreeID:         treeID,
		SourcePersonID: req.SourcePersonID,
		TargetPersonID: req.TargetPersonID,
		EncryptedData:  req.EncryptedData,
	}
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		if err := syncpkg.ValidateRelationshipEndpoint(r.Context(), tx, treeID, "source_person_id", req.SourcePersonID); err != nil {
			return err
		}
		if err := syncpkg.ValidateRelationshipEndpoint(r.Context(), tx, treeID, "target_person_id", req.TargetPersonID); err != nil {
			return err
		}
		return tx.CreateRelationship(r.Context(), rel)
	})
	if err != nil {
		if database.IsDuplicateKey(err) {
			respondError(w, http.StatusConflict, "CONFLICT", "Relationship already exists", nil)
			return
		}
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, rel)
}

// HandleRelationshipList returns every relationship in the tree. GET
// /api/v1/trees/{treeID}/relationships.
func (h *Handler) HandleRelationshipList(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	var rels []models.Relationship
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		var err error
		rels, err = tx.ListRelationships(r.Context(), treeID)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if rels == nil {
		rels = []models.Relationship{}
	}
	respondSuccess(w, http.StatusOK, rels)
}

// HandleRelationshipGet returns one relationship. GET
// /api/v1/trees/{treeID}/relationships/{relationshipID}.
func (h *Handler) HandleRelationshipGet(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}
	relID, ok := pathUUID(w, r, "relationshipID")
	if !ok {
		return
	}

	var rel *models.Relationship
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		var err error
		rel, err = tx.GetRelationship(r.Context(), treeID, relID)
		if errors.Is(err, database.ErrNotFound) {
			return &syncpkg.NotFoundError{Kind: "Relationship", ID: relID}
		}
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, rel)
}

// HandleRelationshipUpdate rewrites any subset of a relationship's fields.
// PUT /api/v1/trees/{treeID}/relationships/{relationshipID}. Endpoint
// changes are validated against tree membership before anything is
// written.
func (h *Handler) HandleRelationshipUpdate(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}
	relID, ok := pathUUID(w, r, "relationshipID")
	if !ok {
		return
	}

	var req RelationshipUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var rel *models.Relationship
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		exists, err := tx.RelationshipExists(r.Context(), treeID, relID)
		if err != nil {
			return err
		}
		if !exists {
			return &syncpkg.NotFoundError{Kind: "Relationship", ID: relID}
		}

		fields := database.RelationshipFields{EncryptedData: req.EncryptedData}
		if req.SourcePersonID != nil {
			if err := syncpkg.ValidateRelationshipEndpoint(r.Context(), tx, treeID, "source_person_id", *req.SourcePersonID); err != nil {
				return err
			}
			fields.SourcePersonID = req.SourcePersonID
		}
		if req.TargetPersonID != nil {
			if err := syncpkg.ValidateRelationshipEndpoint(r.Context(), tx, treeID, "target_person_id", *req.TargetPersonID); err != nil {
				return err
			}
			fields.TargetPersonID = req.TargetPersonID
		}

		if _, err := tx.UpdateRelationshipFields(r.Context(), treeID, relID, fields); err != nil {
			return err
		}
		rel, err = tx.GetRelationship(r.Context(), treeID, relID)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, rel)
}

// HandleRelationshipDelete removes one relationship. DELETE
// /api/v1/trees/{treeID}/relationships/{relationshipID}.
func (h *Handler) HandleRelationshipDelete(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}
	relID, ok := pathUUID(w, r, "relationshipID")
	if !ok {
		return
	}

	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		n, err := tx.DeleteRelationships(r.Context(), treeID, []uuid.UUID{relID})
		if err != nil {
			return err
		}
		if n == 0 {
			return &syncpkg.NotFoundError{Kind: "Relationship", ID: relID}
		}
		return nil
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondNoContent(w)
}
