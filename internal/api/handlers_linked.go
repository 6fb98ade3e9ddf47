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

// Events, life events, turning points, classifications, and patterns share
// one storage shape: an encrypted blob plus person links. Each handler
// below is a factory closed over the kind descriptor; the router
// instantiates the full CRUD set five times.

// LinkedCreateHandler adds an entity with its person links. POST
// /api/v1/trees/{treeID}/<kind>.
func (h *Handler) LinkedCreateHandler(kind database.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, treeID, ok := treeScope(w, r)
		if !ok {
			return
		}

		var req LinkedCreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.PersonIDs == nil {
			req.PersonIDs = []uuid.UUID{}
		}

		entity := &models.LinkedEntity{
			ID:            req.ID,
			TreeID:        treeID,
			EncryptedData: req.EncryptedData,
			PersonIDs:     req.PersonIDs,
		}
		err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
			if err := syncpkg.ValidatePersonsInTree(r.Context(), tx, treeID, req.PersonIDs); err != nil {
				return err
			}
			if err := tx.CreateLinkedEntity(r.Context(), kind, entity); err != nil {
				return err
			}
			return tx.AddPersonLinks(r.Context(), kind, entity.ID, req.PersonIDs)
		})
		if err != nil {
			if database.IsDuplicateKey(err) {
				respondError(w, http.StatusConflict, "CONFLICT", kind.Label+" already exists", nil)
				return
			}
			respondDomainError(w, err)
			return
		}

		respondSuccess(w, http.StatusCreated, entity)
	}
}

// LinkedListHandler returns every entity of the kind, person links
// included. GET /api/v1/trees/{treeID}/<kind>.
func (h *Handler) LinkedListHandler(kind database.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, treeID, ok := treeScope(w, r)
		if !ok {
			return
		}

		var entities []models.LinkedEntity
		err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
			var err error
			entities, err = tx.ListLinkedEntities(r.Context(), kind, treeID)
			return err
		})
		if err != nil {
			respondDomainError(w, err)
			return
		}

		if entities == nil {
			entities = []models.LinkedEntity{}
		}
		respondSuccess(w, http.StatusOK, entities)
	}
}

// LinkedGetHandler returns one entity. GET
// /api/v1/trees/{treeID}/<kind>/{entityID}.
func (h *Handler) LinkedGetHandler(kind database.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, treeID, ok := treeScope(w, r)
		if !ok {
			return
		}
		entityID, ok := pathUUID(w, r, "entityID")
		if !ok {
			return
		}

		var entity *models.LinkedEntity
		err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
			var err error
			entity, err = tx.GetLinkedEntity(r.Context(), kind, treeID, entityID)
			if errors.Is(err, database.ErrNotFound) {
				return &syncpkg.NotFoundError{Kind: kind.Label, ID: entityID}
			}
			return err
		})
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondSuccess(w, http.StatusOK, entity)
	}
}

// LinkedUpdateHandler rewrites an entity's blob, its person links, or
// both. PUT /api/v1/trees/{treeID}/<kind>/{entityID}. person_ids is
// tri-state: absent leaves links untouched, empty clears them, non-empty
// replaces them after membership validation.
func (h *Handler) LinkedUpdateHandler(kind database.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, treeID, ok := treeScope(w, r)
		if !ok {
			return
		}
		entityID, ok := pathUUID(w, r, "entityID")
		if !ok {
			return
		}

		var req LinkedUpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var entity *models.LinkedEntity
		err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
			exists, err := tx.LinkedEntityExists(r.Context(), kind, treeID, entityID)
			if err != nil {
				return err
			}
			if !exists {
				return &syncpkg.NotFoundError{Kind: kind.Label, ID: entityID}
			}

			if req.EncryptedData != nil {
				if _, err := tx.UpdateLinkedEntityData(r.Context(), kind, treeID, entityID, *req.EncryptedData); err != nil {
					return err
				}
			}
			if req.PersonIDs.Set {
				if err := syncpkg.ValidatePersonsInTree(r.Context(), tx, treeID, req.PersonIDs.IDs); err != nil {
					return err
				}
				if err := tx.ReplacePersonLinks(r.Context(), kind, entityID, req.PersonIDs.IDs); err != nil {
					return err
				}
				if req.EncryptedData == nil {
					if err := tx.TouchLinkedEntity(r.Context(), kind, treeID, entityID); err != nil {
						return err
					}
				}
			}

			entity, err = tx.GetLinkedEntity(r.Context(), kind, treeID, entityID)
			return err
		})
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondSuccess(w, http.StatusOK, entity)
	}
}

// LinkedDeleteHandler removes an entity and its junction rows. DELETE
// /api/v1/trees/{treeID}/<kind>/{entityID}.
func (h *Handler) LinkedDeleteHandler(kind database.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, treeID, ok := treeScope(w, r)
		if !ok {
			return
		}
		entityID, ok := pathUUID(w, r, "entityID")
		if !ok {
			return
		}

		err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
			n, err := tx.DeleteLinkedEntities(r.Context(), kind, treeID, []uuid.UUID{entityID})
			if err != nil {
				return err
			}
			if n == 0 {
				return &syncpkg.NotFoundError{Kind: kind.Label, ID: entityID}
			}
			return nil
		})
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondNoContent(w)
	}
}
