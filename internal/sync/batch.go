// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package sync

import (
	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/models"
)

// PersonCreate is one person in a batch's create list. A zero ID asks the
// server to generate one.
type PersonCreate struct {
	ID            uuid.UUID `json:"id"`
	EncryptedData string    `json:"encrypted_data" validate:"required"`
}

// PersonUpdate replaces a person's encrypted blob.
type PersonUpdate struct {
	ID            uuid.UUID `json:"id" validate:"required"`
	EncryptedData string    `json:"encrypted_data" validate:"required"`
}

// RelationshipCreate is one relationship in a batch's create list.
type RelationshipCreate struct {
	ID             uuid.UUID `json:"id"`
	SourcePersonID uuid.UUID `json:"source_person_id" validate:"required"`
	TargetPersonID uuid.UUID `json:"target_person_id" validate:"required"`
	EncryptedData  string    `json:"encrypted_data" validate:"required"`
}

// RelationshipUpdate carries per-field changes; nil fields stay untouched.
type RelationshipUpdate struct {
	ID             uuid.UUID  `json:"id" validate:"required"`
	SourcePersonID *uuid.UUID `json:"source_person_id"`
	TargetPersonID *uuid.UUID `json:"target_person_id"`
	EncryptedData  *string    `json:"encrypted_data"`
}

// LinkedCreate is one linked-kind record (event, life event, turning point,
// classification, or pattern) in a batch's create list.
type LinkedCreate struct {
	ID            uuid.UUID   `json:"id"`
	PersonIDs     []uuid.UUID `json:"person_ids"`
	EncryptedData string      `json:"encrypted_data" validate:"required"`
}

// LinkedUpdate carries per-field changes for a linked-kind record. PersonIDs
// keeps the omitted / empty / non-empty distinction: omitted leaves the
// person links untouched, empty clears them, non-empty replaces them.
type LinkedUpdate struct {
	ID            uuid.UUID             `json:"id" validate:"required"`
	PersonIDs     models.OptionalIDList `json:"person_ids"`
	EncryptedData *string               `json:"encrypted_data"`
}

// DeleteItem names one row to remove.
type DeleteItem struct {
	ID uuid.UUID `json:"id" validate:"required"`
}

// Batch is one sync request. Omitted lists decode as empty and are no-ops.
type Batch struct {
	PersonsCreate []PersonCreate `json:"persons_create" validate:"dive"`
	PersonsUpdate []PersonUpdate `json:"persons_update" validate:"dive"`
	PersonsDelete []DeleteItem   `json:"persons_delete" validate:"dive"`

	RelationshipsCreate []RelationshipCreate `json:"relationships_create" validate:"dive"`
	RelationshipsUpdate []RelationshipUpdate `json:"relationships_update" validate:"dive"`
	RelationshipsDelete []DeleteItem         `json:"relationships_delete" validate:"dive"`

	EventsCreate []LinkedCreate `json:"events_create" validate:"dive"`
	EventsUpdate []LinkedUpdate `json:"events_update" validate:"dive"`
	EventsDelete []DeleteItem   `json:"events_delete" validate:"dive"`

	LifeEventsCreate []LinkedCreate `json:"life_events_create" validate:"dive"`
	LifeEventsUpdate []LinkedUpdate `json:"life_events_update" validate:"dive"`
	LifeEventsDelete []DeleteItem   `json:"life_events_delete" validate:"dive"`

	TurningPointsCreate []LinkedCreate `json:"turning_points_create" validate:"dive"`
	TurningPointsUpdate []LinkedUpdate `json:"turning_points_update" validate:"dive"`
	TurningPointsDelete []DeleteItem   `json:"turning_points_delete" validate:"dive"`

	ClassificationsCreate []LinkedCreate `json:"classifications_create" validate:"dive"`
	ClassificationsUpdate []LinkedUpdate `json:"classifications_update" validate:"dive"`
	ClassificationsDelete []DeleteItem   `json:"classifications_delete" validate:"dive"`

	PatternsCreate []LinkedCreate `json:"patterns_create" validate:"dive"`
	PatternsUpdate []LinkedUpdate `json:"patterns_update" validate:"dive"`
	PatternsDelete []DeleteItem   `json:"patterns_delete" validate:"dive"`
}

// linkedCreates returns the create list for the given kind.
func (b *Batch) linkedCreates(kind database.EntityKind) []LinkedCreate {
	switch kind.Table {
	case database.KindEvent.Table:
		return b.EventsCreate
	case database.KindLifeEvent.Table:
		return b.LifeEventsCreate
	case database.KindTurningPoint.Table:
		return b.TurningPointsCreate
	case database.KindClassification.Table:
		return b.ClassificationsCreate
	case database.KindPattern.Table:
		return b.PatternsCreate
	}
	return nil
}

// linkedUpdates returns the update list for the given kind.
func (b *Batch) linkedUpdates(kind database.EntityKind) []LinkedUpdate {
	switch kind.Table {
	case database.KindEvent.Table:
		return b.EventsUpdate
	case database.KindLifeEvent.Table:
		return b.LifeEventsUpdate
	case database.KindTurningPoint.Table:
		return b.TurningPointsUpdate
	case database.KindClassification.Table:
		return b.ClassificationsUpdate
	case database.KindPattern.Table:
		return b.PatternsUpdate
	}
	return nil
}

// linkedDeletes returns the delete list for the given kind.
func (b *Batch) linkedDeletes(kind database.EntityKind) []DeleteItem {
	switch kind.Table {
	case database.KindEvent.Table:
		return b.EventsDelete
	case database.KindLifeEvent.Table:
		return b.LifeEventsDelete
	case database.KindTurningPoint.Table:
		return b.TurningPointsDelete
	case database.KindClassification.Table:
		return b.ClassificationsDelete
	case database.KindPattern.Table:
		return b.PatternsDelete
	}
	return nil
}

// referencedPersonIDs collects every person id the batch's relationship and
// linked-entity creates point at, duplicates included. The validator resolves
// them against the tree in a single query.
func (b *Batch) referencedPersonIDs() []uuid.UUID {
	var ids []uuid.UUID
	for i := range b.RelationshipsCreate {
		ids = append(ids, b.RelationshipsCreate[i].SourcePersonID, b.RelationshipsCreate[i].TargetPersonID)
	}
	for _, kind := range database.LinkedKinds {
		for _, item := range b.linkedCreates(kind) {
			ids = append(ids, item.PersonIDs...)
		}
	}
	return ids
}

// Size returns the total number of operations in the batch.
func (b *Batch) Size() int {
	n := len(b.PersonsCreate) + len(b.PersonsUpdate) + len(b.PersonsDelete) +
		len(b.RelationshipsCreate) + len(b.RelationshipsUpdate) + len(b.RelationshipsDelete)
	for _, kind := range database.LinkedKinds {
		n += len(b.linkedCreates(kind)) + len(b.linkedUpdates(kind)) + len(b.linkedDeletes(kind))
	}
	return n
}

// deleteIDs flattens a delete list into raw ids.
func deleteIDs(items []DeleteItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// Result reports what one committed batch changed. Created id lists are
// ordered one-to-one with the corresponding create lists in the request.
type Result struct {
	PersonsCreated         []uuid.UUID `json:"persons_created"`
	RelationshipsCreated   []uuid.UUID `json:"relationships_created"`
	EventsCreated          []uuid.UUID `json:"events_created"`
	LifeEventsCreated      []uuid.UUID `json:"life_events_created"`
	TurningPointsCreated   []uuid.UUID `json:"turning_points_created"`
	ClassificationsCreated []uuid.UUID `json:"classifications_created"`
	PatternsCreated        []uuid.UUID `json:"patterns_created"`

	PersonsUpdated         int `json:"persons_updated"`
	RelationshipsUpdated   int `json:"relationships_updated"`
	EventsUpdated          int `json:"events_updated"`
	LifeEventsUpdated      int `json:"life_events_updated"`
	TurningPointsUpdated   int `json:"turning_points_updated"`
	ClassificationsUpdated int `json:"classifications_updated"`
	PatternsUpdated        int `json:"patterns_updated"`

	PersonsDeleted         int `json:"persons_deleted"`
	RelationshipsDeleted   int `json:"relationships_deleted"`
	EventsDeleted          int `json:"events_deleted"`
	LifeEventsDeleted      int `json:"life_events_deleted"`
	TurningPointsDeleted   int `json:"turning_points_deleted"`
	ClassificationsDeleted int `json:"classifications_deleted"`
	PatternsDeleted        int `json:"patterns_deleted"`
}

// newResult returns a Result whose created lists serialize as [] rather
// than null.
func newResult() *Result {
	return &Result{
		PersonsCreated:         []uuid.UUID{},
		RelationshipsCreated:   []uuid.UUID{},
		EventsCreated:          []uuid.UUID{},
		LifeEventsCreated:      []uuid.UUID{},
		TurningPointsCreated:   []uuid.UUID{},
		ClassificationsCreated: []uuid.UUID{},
		PatternsCreated:        []uuid.UUID{},
	}
}

func (r *Result) setCreated(kind database.EntityKind, ids []uuid.UUID) {
	switch kind.Table {
	case database.KindEvent.Table:
		r.EventsCreated = ids
	case database.KindLifeEvent.Table:
		r.LifeEventsCreated = ids
	case database.KindTurningPoint.Table:
		r.TurningPointsCreated = ids
	case database.KindClassification.Table:
		r.ClassificationsCreated = ids
	case database.KindPattern.Table:
		r.PatternsCreated = ids
	}
}

func (r *Result) setUpdated(kind database.EntityKind, n int) {
	switch kind.Table {
	case database.KindEvent.Table:
		r.EventsUpdated = n
	case database.KindLifeEvent.Table:
		r.LifeEventsUpdated = n
	case database.KindTurningPoint.Table:
		r.TurningPointsUpdated = n
	case database.KindClassification.Table:
		r.ClassificationsUpdated = n
	case database.KindPattern.Table:
		r.PatternsUpdated = n
	}
}

func (r *Result) setDeleted(kind database.EntityKind, n int) {
	switch kind.Table {
	case database.KindEvent.Table:
		r.EventsDeleted = n
	case database.KindLifeEvent.Table:
		r.LifeEventsDeleted = n
	case database.KindTurningPoint.Table:
		r.TurningPointsDeleted = n
	case database.KindClassification.Table:
		r.ClassificationsDeleted = n
	case database.KindPattern.Table:
		r.PatternsDeleted = n
	}
}

// CreatedCount returns the total rows inserted by the batch.
func (r *Result) CreatedCount() int {
	return len(r.PersonsCreated) + len(r.RelationshipsCreated) +
		len(r.EventsCreated) + len(r.LifeEventsCreated) + len(r.TurningPointsCreated) +
		len(r.ClassificationsCreated) + len(r.PatternsCreated)
}

// UpdatedCount returns the total rows updated by the batch.
func (r *Result) UpdatedCount() int {
	return r.PersonsUpdated + r.RelationshipsUpdated +
		r.EventsUpdated + r.LifeEventsUpdated + r.TurningPointsUpdated +
		r.ClassificationsUpdated + r.PatternsUpdated
}

// DeletedCount returns the total rows removed by the batch.
func (r *Result) DeletedCount() int {
	return r.PersonsDeleted + r.RelationshipsDeleted +
		r.EventsDeleted + r.LifeEventsDeleted + r.TurningPointsDeleted +
		r.ClassificationsDeleted + r.PatternsDeleted
}
