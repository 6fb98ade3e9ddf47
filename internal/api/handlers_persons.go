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

// HandlePersonCreate adds a person to the tree. POST
// /api/v1/trees/{treeID}/persons.
func (h *Handler) HandlePersonCreate(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	var req PersonCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	person := &models.Person{
		ID:            req.ID,
		TreeID:        treeID,
		EncryptedData: req.EncryptedData,
	}
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		return tx.CreatePerson(r.Context(), person)
	})
	if err != nil {
		if database.IsDuplicateKey(err) {
			respondError(w, http.StatusConflict, "CONFLICT", "Person already exists", nil)
			return
		}
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, person)
}

// HandlePersonList returns every person in the tree. GET
// /api/v1/trees/{treeID}/persons.
func (h *Handler) HandlePersonList(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	var persons []models.Person
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		var err error
		persons, err = tx.ListPersons(r.Context(), treeID)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if persons == nil {
		persons = []models.Person{}
	}
	respondSuccess(w, http.StatusOK, persons)
}

// HandlePersonGet returns one person. GET
// /api/v1/trees/{treeID}/persons/{personID}.
func (h *Handler) HandlePersonGet(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}
	personID, ok := pathUUID(w, r, "personID")
	if !ok {
		return
	}

	var person *models.Person
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		var err error
		person, err = tx.GetPerson(r.Context(), treeID, personID)
		if errors.Is(err, database.ErrNotFound) {
			return &syncpkg.NotFoundError{Kind: "Person", ID: personID}
		}
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, person)
}

// HandlePersonUpdate replaces a person's blob. PUT
// /api/v1/trees/{treeID}/persons/{personID}.
func (h *Handler) HandlePersonUpdate(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}
	personID, ok := pathUUID(w, r, "personID")
	if !ok {
		return
	}

	var req PersonUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var person *models.Person
	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		found, err := tx.UpdatePersonData(r.Context(), treeID, personID, req.EncryptedData)
		if err != nil {
			return err
		}
		if !found {
			return &syncpkg.NotFoundError{Kind: "Person", ID: personID}
		}
		person, err = tx.GetPerson(r.Context(), treeID, personID)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, person)
}

// HandlePersonDelete removes a person and everything referencing them:
// relationships touching the person and their junction rows. DELETE
// /api/v1/trees/{treeID}/persons/{personID}.
func (h *Handler) HandlePersonDelete(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}
	personID, ok := pathUUID(w, r, "personID")
	if !ok {
		return
	}

	err := h.withOwnedTree(r.Context(), userID, treeID, func(tx *database.Tx, _ *models.Tree) error {
		n, err := tx.DeletePersons(r.Context(), treeID, []uuid.UUID{personID})
		if err != nil {
			return err
		}
		if n == 0 {
			return &syncpkg.NotFoundError{Kind: "Person", ID: personID}
		}
		return nil
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondNoContent(w)
}
