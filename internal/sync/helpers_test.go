// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package sync

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/config"
	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/models"
)

// testDBSemaphore serializes database lifecycles, matching the discipline in
// the database package tests: one open DuckDB instance at a time.
var testDBSemaphore = make(chan struct{}, 1)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	db, err := database.New(cfg)
	if err != nil {
		t.Fatalf("database.New() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})

	return db
}

func mustTx(t *testing.T, db *database.DB, fn func(tx *database.Tx) error) {
	t.Helper()
	if err := db.WithTx(context.Background(), fn); err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
}

func seedTree(t *testing.T, db *database.DB) *models.Tree {
	t.Helper()

	user := &models.User{
		Email:          uuid.NewString() + "@example.com",
		PasswordHash:   "$2a$12$hash",
		EncryptionSalt: "c2FsdA==",
		EmailVerified:  true,
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	tree := &models.Tree{UserID: user.ID, EncryptedData: "tree-blob"}
	mustTx(t, db, func(tx *database.Tx) error {
		return tx.CreateTree(context.Background(), tree)
	})
	return tree
}

func seedPerson(t *testing.T, db *database.DB, treeID uuid.UUID) *models.Person {
	t.Helper()

	p := &models.Person{TreeID: treeID, EncryptedData: "person-blob"}
	mustTx(t, db, func(tx *database.Tx) error {
		return tx.CreatePerson(context.Background(), p)
	})
	return p
}

func seedLinked(t *testing.T, db *database.DB, kind database.EntityKind, treeID uuid.UUID, personIDs []uuid.UUID) *models.LinkedEntity {
	t.Helper()

	e := &models.LinkedEntity{TreeID: treeID, EncryptedData: "linked-blob"}
	mustTx(t, db, func(tx *database.Tx) error {
		if err := tx.CreateLinkedEntity(context.Background(), kind, e); err != nil {
			return err
		}
		return tx.AddPersonLinks(context.Background(), kind, e.ID, personIDs)
	})
	return e
}

// recordingNotifier captures NotifySyncCompleted calls.
type recordingNotifier struct {
	calls  int
	userID uuid.UUID
	treeID uuid.UUID
	result *Result
}

func (n *recordingNotifier) NotifySyncCompleted(userID, treeID uuid.UUID, result *Result) {
	n.calls++
	n.userID = userID
	n.treeID = treeID
	n.result = result
}
