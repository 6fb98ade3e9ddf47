// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package sync

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NotFoundError reports an update that targets an id with no row in the
// caller's tree. Kind is the human-readable entity label (Person,
// Relationship, Event, Life event, Turning point, Classification, Pattern).
type NotFoundError struct {
	Kind string
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ValidationError reports person references that are not members of the
// caller's tree. When a relationship endpoint fails, Field carries the
// offending field name; otherwise MissingIDs enumerates every absent id.
type ValidationError struct {
	Field      string
	MissingIDs []uuid.UUID
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s not found in this tree", e.Field)
	}
	quoted := make([]string, len(e.MissingIDs))
	for i, id := range e.MissingIDs {
		quoted[i] = "'" + id.String() + "'"
	}
	return fmt.Sprintf("person_ids not found in this tree: [%s]", strings.Join(quoted, ", "))
}
