// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package sync

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/database"
)

// ValidatePersonsInTree confirms every id names a person belonging to the
// tree. An empty input succeeds without querying. On failure the returned
// ValidationError enumerates all missing ids, sorted, so the client can fix
// its payload in one round trip.
func ValidatePersonsInTree(ctx context.Context, tx *database.Tx, treeID uuid.UUID, personIDs []uuid.UUID) error {
	if len(personIDs) == 0 {
		return nil
	}

	found, err := tx.PersonIDSet(ctx, treeID, personIDs)
	if err != nil {
		return err
	}

	seen := make(map[uuid.UUID]struct{}, len(personIDs))
	var missing []uuid.UUID
	for _, id := range personIDs {
		if _, ok := found[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return nil
	}

	sort.Slice(missing, func(i, j int) bool {
		return bytes.Compare(missing[i][:], missing[j][:]) < 0
	})
	return &ValidationError{MissingIDs: missing}
}

// ValidateRelationshipEndpoint confirms a single relationship endpoint names
// a person in the tree. Field is source_person_id or target_person_id and is
// carried into the error so the response can say which side was wrong.
func ValidateRelationshipEndpoint(ctx context.Context, tx *database.Tx, treeID uuid.UUID, field string, personID uuid.UUID) error {
	found, err := tx.PersonIDSet(ctx, treeID, []uuid.UUID{personID})
	if err != nil {
		return err
	}
	if _, ok := found[personID]; !ok {
		return &ValidationError{Field: field, MissingIDs: []uuid.UUID{personID}}
	}
	return nil
}
