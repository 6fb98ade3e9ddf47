// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"net/http"

	"github.com/stemmahq/stemma/internal/database"
	syncpkg "github.com/stemmahq/stemma/internal/sync"
)

// HandleSync applies a batch of offline changes in one transaction. POST
// /api/v1/trees/{treeID}/sync.
//
// The whole batch commits or none of it does. Other live sessions of the
// same user learn about the commit over the websocket; the submitting
// client gets the result inline.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, treeID, ok := treeScope(w, r)
	if !ok {
		return
	}

	var batch syncpkg.Batch
	if !decodeJSON(w, r, &batch) {
		return
	}

	err := h.db.WithTx(r.Context(), func(tx *database.Tx) error {
		_, err := tx.GetTreeForUser(r.Context(), treeID, userID)
		return err
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	result, err := h.reconciler.Sync(r.Context(), userID, treeID, &batch)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, result)
}
