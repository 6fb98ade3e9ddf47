// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/metrics"
	"github.com/stemmahq/stemma/internal/models"
)

// Notifier receives a fire-and-forget signal after a batch commits so the
// owner's other connected sessions can re-pull the tree. Implementations must
// not block; delivery failures stay inside the implementation.
type Notifier interface {
	NotifySyncCompleted(userID, treeID uuid.UUID, result *Result)
}

// Reconciler applies sync batches. Callers resolve tree ownership before
// invoking Sync; the reconciler trusts the tree id it is handed.
type Reconciler struct {
	db       *database.DB
	notifier Notifier
}

// New builds a Reconciler. notifier may be nil when no live sessions exist,
// such as in tests.
func New(db *database.DB, notifier Notifier) *Reconciler {
	return &Reconciler{db: db, notifier: notifier}
}

// Sync applies the batch in one transaction: deletes, then creates, then
// updates. On any failure the transaction rolls back and nothing from any
// phase persists.
//
// Creates are not idempotent: resubmitting an already-committed batch whose
// creates carried client ids hits the primary key, fails the batch, and
// rolls back. Clients that pre-assign ids must not replay confirmed batches.
func (r *Reconciler) Sync(ctx context.Context, userID, treeID uuid.UUID, batch *Batch) (*Result, error) {
	start := time.Now()
	result := newResult()

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := r.applyDeletes(ctx, tx, treeID, batch, result); err != nil {
			return err
		}
		if err := r.applyCreates(ctx, tx, treeID, batch, result); err != nil {
			return err
		}
		return r.applyUpdates(ctx, tx, treeID, batch, result)
	})
	duration := time.Since(start)

	if err != nil {
		metrics.RecordSyncBatch(batchOutcome(err), batch.Size(), duration)
		var nf *NotFoundError
		var ve *ValidationError
		if !errors.As(err, &nf) && !errors.As(err, &ve) {
			logging.Error().
				Err(err).
				Str("tree_id", treeID.String()).
				Msg("Sync batch failed unexpectedly")
		}
		return nil, err
	}

	metrics.RecordSyncBatch("applied", batch.Size(), duration)
	metrics.RecordSyncPhase("delete", result.DeletedCount())
	metrics.RecordSyncPhase("create", result.CreatedCount())
	metrics.RecordSyncPhase("update", result.UpdatedCount())

	logging.Info().
		Str("tree_id", treeID.String()).
		Int("created", result.CreatedCount()).
		Int("updated", result.UpdatedCount()).
		Int("deleted", result.DeletedCount()).
		Dur("duration", duration).
		Msg("Sync batch applied")

	if r.notifier != nil {
		r.notifier.NotifySyncCompleted(userID, treeID, result)
	}
	return result, nil
}

// batchOutcome maps a failure to its metrics label.
func batchOutcome(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return "not_found"
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "validation_failed"
	}
	return "error"
}

// applyDeletes removes relationships first, then each linked kind, then
// persons, so no delete in this phase ever leaves a dangling reference.
func (r *Reconciler) applyDeletes(ctx context.Context, tx *database.Tx, treeID uuid.UUID, batch *Batch, result *Result) error {
	n, err := tx.DeleteRelationships(ctx, treeID, deleteIDs(batch.RelationshipsDelete))
	if err != nil {
		return err
	}
	result.RelationshipsDeleted = int(n)

	for _, kind := range database.LinkedKinds {
		n, err := tx.DeleteLinkedEntities(ctx, kind, treeID, deleteIDs(batch.linkedDeletes(kind)))
		if err != nil {
			return err
		}
		result.setDeleted(kind, int(n))
	}

	n, err = tx.DeletePersons(ctx, treeID, deleteIDs(batch.PersonsDelete))
	if err != nil {
		return err
	}
	result.PersonsDeleted = int(n)
	return nil
}

// applyCreates inserts persons, validates every person reference in the
// batch's remaining creates in one pass, then inserts relationships and each
// linked kind with its junction rows.
func (r *Reconciler) applyCreates(ctx context.Context, tx *database.Tx, treeID uuid.UUID, batch *Batch, result *Result) error {
	for i := range batch.PersonsCreate {
		item := &batch.PersonsCreate[i]
		p := &models.Person{ID: item.ID, TreeID: treeID, EncryptedData: item.EncryptedData}
		if err := tx.CreatePerson(ctx, p); err != nil {
			return err
		}
		result.PersonsCreated = append(result.PersonsCreated, p.ID)
	}

	// Just-created persons are rows now, so one membership check covers
	// pre-existing and batch-created persons alike.
	if err := ValidatePersonsInTree(ctx, tx, treeID, batch.referencedPersonIDs()); err != nil {
		return err
	}

	for i := range batch.RelationshipsCreate {
		item := &batch.RelationshipsCreate[i]
		rel := &models.Relationship{
			ID:             item.ID,
			TreeID:         treeID,
			SourcePersonID: item.SourcePersonID,
			TargetPersonID: item.TargetPersonID,
			EncryptedData:  item.EncryptedData,
		}
		if err := tx.CreateRelationship(ctx, rel); err != nil {
			return err
		}
		result.RelationshipsCreated = append(result.RelationshipsCreated, rel.ID)
	}

	for _, kind := range database.LinkedKinds {
		items := batch.linkedCreates(kind)
		created := make([]uuid.UUID, 0, len(items))
		for i := range items {
			e := &models.LinkedEntity{ID: items[i].ID, TreeID: treeID, EncryptedData: items[i].EncryptedData}
			if err := tx.CreateLinkedEntity(ctx, kind, e); err != nil {
				return err
			}
			created = append(created, e.ID)
		}
		result.setCreated(kind, created)

		// Junction rows go in after the kind's parent rows, item i linking
		// to created[i].
		for i := range items {
			if err := tx.AddPersonLinks(ctx, kind, created[i], items[i].PersonIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyUpdates rewrites person blobs, then relationship fields, then each
// linked kind. Every update target must exist in the tree.
func (r *Reconciler) applyUpdates(ctx context.Context, tx *database.Tx, treeID uuid.UUID, batch *Batch, result *Result) error {
	for i := range batch.PersonsUpdate {
		item := &batch.PersonsUpdate[i]
		found, err := tx.UpdatePersonData(ctx, treeID, item.ID, item.EncryptedData)
		if err != nil {
			return err
		}
		if !found {
			return &NotFoundError{Kind: "Person", ID: item.ID}
		}
		result.PersonsUpdated++
	}

	if err := r.updateRelationships(ctx, tx, treeID, batch, result); err != nil {
		return err
	}

	for _, kind := range database.LinkedKinds {
		n, err := r.updateLinkedEntities(ctx, tx, treeID, kind, batch.linkedUpdates(kind))
		if err != nil {
			return err
		}
		result.setUpdated(kind, n)
	}
	return nil
}

func (r *Reconciler) updateRelationships(ctx context.Context, tx *database.Tx, treeID uuid.UUID, batch *Batch, result *Result) error {
	for i := range batch.RelationshipsUpdate {
		item := &batch.RelationshipsUpdate[i]

		exists, err := tx.RelationshipExists(ctx, treeID, item.ID)
		if err != nil {
			return err
		}
		if !exists {
			return &NotFoundError{Kind: "Relationship", ID: item.ID}
		}

		fields := database.RelationshipFields{EncryptedData: item.EncryptedData}
		if item.SourcePersonID != nil {
			if err := ValidateRelationshipEndpoint(ctx, tx, treeID, "source_person_id", *item.SourcePersonID); err != nil {
				return err
			}
			fields.SourcePersonID = item.SourcePersonID
		}
		if item.TargetPersonID != nil {
			if err := ValidateRelationshipEndpoint(ctx, tx, treeID, "target_person_id", *item.TargetPersonID); err != nil {
				return err
			}
			fields.TargetPersonID = item.TargetPersonID
		}

		if _, err := tx.UpdateRelationshipFields(ctx, treeID, item.ID, fields); err != nil {
			return err
		}
		result.RelationshipsUpdated++
	}
	return nil
}

func (r *Reconciler) updateLinkedEntities(ctx context.Context, tx *database.Tx, treeID uuid.UUID, kind database.EntityKind, items []LinkedUpdate) (int, error) {
	count := 0
	for i := range items {
		item := &items[i]

		exists, err := tx.LinkedEntityExists(ctx, kind, treeID, item.ID)
		if err != nil {
			return count, err
		}
		if !exists {
			return count, &NotFoundError{Kind: kind.Label, ID: item.ID}
		}

		if item.EncryptedData != nil {
			if _, err := tx.UpdateLinkedEntityData(ctx, kind, treeID, item.ID, *item.EncryptedData); err != nil {
				return count, err
			}
		}
		if item.PersonIDs.Set {
			if err := ValidatePersonsInTree(ctx, tx, treeID, item.PersonIDs.IDs); err != nil {
				return count, err
			}
			if err := tx.ReplacePersonLinks(ctx, kind, item.ID, item.PersonIDs.IDs); err != nil {
				return count, err
			}
			if item.EncryptedData == nil {
				if err := tx.TouchLinkedEntity(ctx, kind, treeID, item.ID); err != nil {
					return count, err
				}
			}
		}
		count++
	}
	return count, nil
}
