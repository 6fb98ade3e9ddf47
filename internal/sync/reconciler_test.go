// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/models"
)

func TestSyncCreatesPersons(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	r := New(db, nil)

	batch := &Batch{
		PersonsCreate: []PersonCreate{
			{EncryptedData: "a"},
			{EncryptedData: "b"},
		},
	}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.PersonsCreated) != 2 {
		t.Fatalf("PersonsCreated = %v, want 2 ids", result.PersonsCreated)
	}
	if result.PersonsCreated[0] == uuid.Nil || result.PersonsCreated[1] == uuid.Nil {
		t.Error("generated ids must not be zero")
	}
	if result.PersonsCreated[0] == result.PersonsCreated[1] {
		t.Error("generated ids must be distinct")
	}
	if result.UpdatedCount() != 0 || result.DeletedCount() != 0 {
		t.Errorf("updated/deleted = %d/%d, want 0/0", result.UpdatedCount(), result.DeletedCount())
	}

	mustTx(t, db, func(tx *database.Tx) error {
		persons, err := tx.ListPersons(context.Background(), tree.ID)
		if err != nil {
			return err
		}
		if len(persons) != 2 {
			t.Errorf("persisted %d persons, want 2", len(persons))
		}
		return nil
	})
}

func TestSyncRelationshipReferencesBatchPersons(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	r := New(db, nil)

	p1 := uuid.New()
	p2 := uuid.New()
	batch := &Batch{
		PersonsCreate: []PersonCreate{
			{ID: p1, EncryptedData: "a"},
			{ID: p2, EncryptedData: "b"},
		},
		RelationshipsCreate: []RelationshipCreate{
			{SourcePersonID: p1, TargetPersonID: p2, EncryptedData: "r"},
		},
	}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.PersonsCreated) != 2 || result.PersonsCreated[0] != p1 || result.PersonsCreated[1] != p2 {
		t.Errorf("PersonsCreated = %v, want [%s %s] in input order", result.PersonsCreated, p1, p2)
	}
	if len(result.RelationshipsCreated) != 1 {
		t.Fatalf("RelationshipsCreated = %v, want 1 id", result.RelationshipsCreated)
	}

	mustTx(t, db, func(tx *database.Tx) error {
		rel, err := tx.GetRelationship(context.Background(), tree.ID, result.RelationshipsCreated[0])
		if err != nil {
			return err
		}
		if rel.SourcePersonID != p1 || rel.TargetPersonID != p2 {
			t.Errorf("endpoints = %s -> %s, want %s -> %s", rel.SourcePersonID, rel.TargetPersonID, p1, p2)
		}
		return nil
	})
}

func TestSyncRejectsUnknownRelationshipTarget(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	existing := seedPerson(t, db, tree.ID)
	r := New(db, nil)

	unknown := uuid.New()
	batch := &Batch{
		RelationshipsCreate: []RelationshipCreate{
			{SourcePersonID: existing.ID, TargetPersonID: unknown, EncryptedData: "r"},
		},
	}
	_, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(ve.MissingIDs) != 1 || ve.MissingIDs[0] != unknown {
		t.Errorf("MissingIDs = %v, want [%s]", ve.MissingIDs, unknown)
	}

	mustTx(t, db, func(tx *database.Tx) error {
		rels, err := tx.ListRelationships(context.Background(), tree.ID)
		if err != nil {
			return err
		}
		if len(rels) != 0 {
			t.Errorf("%d relationship rows persisted from failed batch", len(rels))
		}
		return nil
	})
}

func TestSyncClearsLinksOnEmptyPersonIDs(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	p := seedPerson(t, db, tree.ID)
	event := seedLinked(t, db, database.KindEvent, tree.ID, []uuid.UUID{p.ID})
	r := New(db, nil)

	batch := &Batch{
		EventsUpdate: []LinkedUpdate{
			{ID: event.ID, PersonIDs: models.OptionalIDList{Set: true, IDs: []uuid.UUID{}}},
		},
	}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.EventsUpdated != 1 {
		t.Errorf("EventsUpdated = %d, want 1", result.EventsUpdated)
	}

	mustTx(t, db, func(tx *database.Tx) error {
		got, err := tx.GetLinkedEntity(context.Background(), database.KindEvent, tree.ID, event.ID)
		if err != nil {
			return err
		}
		if len(got.PersonIDs) != 0 {
			t.Errorf("PersonIDs = %v, want none", got.PersonIDs)
		}
		if got.EncryptedData != event.EncryptedData {
			t.Errorf("blob changed to %q on a links-only update", got.EncryptedData)
		}
		return nil
	})
}

func TestSyncOmittedPersonIDsLeaveLinks(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	p := seedPerson(t, db, tree.ID)
	pattern := seedLinked(t, db, database.KindPattern, tree.ID, []uuid.UUID{p.ID})
	r := New(db, nil)

	blob := "rewritten"
	batch := &Batch{
		PatternsUpdate: []LinkedUpdate{
			{ID: pattern.ID, EncryptedData: &blob},
		},
	}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.PatternsUpdated != 1 {
		t.Errorf("PatternsUpdated = %d, want 1", result.PatternsUpdated)
	}

	mustTx(t, db, func(tx *database.Tx) error {
		got, err := tx.GetLinkedEntity(context.Background(), database.KindPattern, tree.ID, pattern.ID)
		if err != nil {
			return err
		}
		if got.EncryptedData != blob {
			t.Errorf("EncryptedData = %q, want %q", got.EncryptedData, blob)
		}
		if len(got.PersonIDs) != 1 || got.PersonIDs[0] != p.ID {
			t.Errorf("PersonIDs = %v, want [%s] untouched", got.PersonIDs, p.ID)
		}
		return nil
	})
}

func TestSyncDeleteUnknownIDsCountZero(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	r := New(db, nil)

	batch := &Batch{
		PersonsDelete: []DeleteItem{{ID: uuid.New()}},
		EventsDelete:  []DeleteItem{{ID: uuid.New()}},
	}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("deleting unknown ids must not fail: %v", err)
	}
	if result.PersonsDeleted != 0 || result.EventsDeleted != 0 {
		t.Errorf("deleted counts = %d/%d, want 0/0", result.PersonsDeleted, result.EventsDeleted)
	}
}

func TestSyncUnknownUpdateTargetRollsBackBatch(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	r := New(db, nil)

	unknown := uuid.New()
	blob := "x"
	batch := &Batch{
		PersonsCreate: []PersonCreate{{EncryptedData: "valid"}},
		RelationshipsUpdate: []RelationshipUpdate{
			{ID: unknown, EncryptedData: &blob},
		},
	}
	_, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if nf.Kind != "Relationship" || nf.ID != unknown {
		t.Errorf("NotFoundError = %+v, want Relationship %s", nf, unknown)
	}

	// The valid create from the same batch must not survive.
	mustTx(t, db, func(tx *database.Tx) error {
		persons, err := tx.ListPersons(context.Background(), tree.ID)
		if err != nil {
			return err
		}
		if len(persons) != 0 {
			t.Errorf("%d persons persisted from rolled-back batch", len(persons))
		}
		return nil
	})
}

func TestSyncDeletePhaseRunsBeforeCreates(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	p := seedPerson(t, db, tree.ID)
	r := New(db, nil)

	// Reusing the id in the same batch only works because deletes land first.
	batch := &Batch{
		PersonsDelete: []DeleteItem{{ID: p.ID}},
		PersonsCreate: []PersonCreate{{ID: p.ID, EncryptedData: "reborn"}},
	}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.PersonsDeleted != 1 {
		t.Errorf("PersonsDeleted = %d, want 1", result.PersonsDeleted)
	}
	if len(result.PersonsCreated) != 1 || result.PersonsCreated[0] != p.ID {
		t.Errorf("PersonsCreated = %v, want [%s]", result.PersonsCreated, p.ID)
	}

	mustTx(t, db, func(tx *database.Tx) error {
		got, err := tx.GetPerson(context.Background(), tree.ID, p.ID)
		if err != nil {
			return err
		}
		if got.EncryptedData != "reborn" {
			t.Errorf("EncryptedData = %q, want %q", got.EncryptedData, "reborn")
		}
		return nil
	})
}

func TestSyncPersonUpdateUnknownIsNotFound(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	r := New(db, nil)

	unknown := uuid.New()
	batch := &Batch{
		PersonsUpdate: []PersonUpdate{{ID: unknown, EncryptedData: "x"}},
	}
	_, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if nf.Kind != "Person" || nf.ID != unknown {
		t.Errorf("NotFoundError = %+v, want Person %s", nf, unknown)
	}
}

func TestSyncRelationshipUpdateValidatesEndpointField(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	a := seedPerson(t, db, tree.ID)
	b := seedPerson(t, db, tree.ID)
	r := New(db, nil)

	var rel *models.Relationship
	mustTx(t, db, func(tx *database.Tx) error {
		rel = &models.Relationship{TreeID: tree.ID, SourcePersonID: a.ID, TargetPersonID: b.ID, EncryptedData: "r"}
		return tx.CreateRelationship(context.Background(), rel)
	})

	bogus := uuid.New()
	batch := &Batch{
		RelationshipsUpdate: []RelationshipUpdate{
			{ID: rel.ID, SourcePersonID: &bogus},
		},
	}
	_, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if ve.Field != "source_person_id" {
		t.Errorf("Field = %q, want source_person_id", ve.Field)
	}

	mustTx(t, db, func(tx *database.Tx) error {
		got, err := tx.GetRelationship(context.Background(), tree.ID, rel.ID)
		if err != nil {
			return err
		}
		if got.SourcePersonID != a.ID {
			t.Errorf("source changed to %s after rolled-back update", got.SourcePersonID)
		}
		return nil
	})
}

func TestSyncUpdatesRelationshipFieldsIndependently(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	a := seedPerson(t, db, tree.ID)
	b := seedPerson(t, db, tree.ID)
	c := seedPerson(t, db, tree.ID)
	r := New(db, nil)

	var rel *models.Relationship
	mustTx(t, db, func(tx *database.Tx) error {
		rel = &models.Relationship{TreeID: tree.ID, SourcePersonID: a.ID, TargetPersonID: b.ID, EncryptedData: "r"}
		return tx.CreateRelationship(context.Background(), rel)
	})

	batch := &Batch{
		RelationshipsUpdate: []RelationshipUpdate{
			{ID: rel.ID, TargetPersonID: &c.ID},
		},
	}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.RelationshipsUpdated != 1 {
		t.Errorf("RelationshipsUpdated = %d, want 1", result.RelationshipsUpdated)
	}

	mustTx(t, db, func(tx *database.Tx) error {
		got, err := tx.GetRelationship(context.Background(), tree.ID, rel.ID)
		if err != nil {
			return err
		}
		if got.SourcePersonID != a.ID || got.TargetPersonID != c.ID || got.EncryptedData != "r" {
			t.Errorf("relationship = %s -> %s %q, want %s -> %s %q",
				got.SourcePersonID, got.TargetPersonID, got.EncryptedData, a.ID, c.ID, "r")
		}
		return nil
	})
}

func TestSyncMixedBatchAppliesAllPhases(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	a := seedPerson(t, db, tree.ID)
	b := seedPerson(t, db, tree.ID)
	event := seedLinked(t, db, database.KindEvent, tree.ID, []uuid.UUID{a.ID})
	stale := seedLinked(t, db, database.KindTurningPoint, tree.ID, nil)
	r := New(db, nil)

	c := uuid.New()
	batch := &Batch{
		PersonsCreate: []PersonCreate{{ID: c, EncryptedData: "c"}},
		RelationshipsCreate: []RelationshipCreate{
			{SourcePersonID: a.ID, TargetPersonID: c, EncryptedData: "rel"},
		},
		LifeEventsCreate: []LinkedCreate{
			{PersonIDs: []uuid.UUID{c}, EncryptedData: "life"},
		},
		PatternsCreate: []LinkedCreate{
			{EncryptedData: "pattern"},
		},
		EventsUpdate: []LinkedUpdate{
			{ID: event.ID, PersonIDs: models.OptionalIDList{Set: true, IDs: []uuid.UUID{b.ID}}},
		},
		TurningPointsDelete: []DeleteItem{{ID: stale.ID}, {ID: uuid.New()}},
	}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.PersonsCreated) != 1 || result.PersonsCreated[0] != c {
		t.Errorf("PersonsCreated = %v", result.PersonsCreated)
	}
	if len(result.RelationshipsCreated) != 1 || len(result.LifeEventsCreated) != 1 || len(result.PatternsCreated) != 1 {
		t.Errorf("created = %v / %v / %v, want one each",
			result.RelationshipsCreated, result.LifeEventsCreated, result.PatternsCreated)
	}
	if result.EventsUpdated != 1 {
		t.Errorf("EventsUpdated = %d, want 1", result.EventsUpdated)
	}
	if result.TurningPointsDeleted != 1 {
		t.Errorf("TurningPointsDeleted = %d, want 1 (unknown id skipped)", result.TurningPointsDeleted)
	}

	mustTx(t, db, func(tx *database.Tx) error {
		ctx := context.Background()

		gotEvent, err := tx.GetLinkedEntity(ctx, database.KindEvent, tree.ID, event.ID)
		if err != nil {
			return err
		}
		if len(gotEvent.PersonIDs) != 1 || gotEvent.PersonIDs[0] != b.ID {
			t.Errorf("event links = %v, want [%s]", gotEvent.PersonIDs, b.ID)
		}

		gotLife, err := tx.GetLinkedEntity(ctx, database.KindLifeEvent, tree.ID, result.LifeEventsCreated[0])
		if err != nil {
			return err
		}
		if len(gotLife.PersonIDs) != 1 || gotLife.PersonIDs[0] != c {
			t.Errorf("life event links = %v, want [%s]", gotLife.PersonIDs, c)
		}

		exists, err := tx.LinkedEntityExists(ctx, database.KindTurningPoint, tree.ID, stale.ID)
		if err != nil {
			return err
		}
		if exists {
			t.Error("deleted turning point still present")
		}
		return nil
	})
}

func TestSyncNotifiesAfterCommitOnly(t *testing.T) {
	db := newTestDB(t)
	tree := seedTree(t, db)
	notifier := &recordingNotifier{}
	r := New(db, notifier)

	batch := &Batch{PersonsCreate: []PersonCreate{{EncryptedData: "a"}}}
	result, err := r.Sync(context.Background(), tree.UserID, tree.ID, batch)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("notifier called %d times, want 1", notifier.calls)
	}
	if notifier.userID != tree.UserID || notifier.treeID != tree.ID {
		t.Errorf("notified %s/%s, want %s/%s", notifier.userID, notifier.treeID, tree.UserID, tree.ID)
	}
	if notifier.result != result {
		t.Error("notifier received a different result than the caller")
	}

	failing := &Batch{
		PersonsUpdate: []PersonUpdate{{ID: uuid.New(), EncryptedData: "x"}},
	}
	if _, err := r.Sync(context.Background(), tree.UserID, tree.ID, failing); err == nil {
		t.Fatal("expected failure for unknown update target")
	}
	if notifier.calls != 1 {
		t.Errorf("notifier called on failed batch (calls = %d)", notifier.calls)
	}
}
