// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/models"
)

// TestHandleTreeCreate tests tree creation and the one-tree-per-user rule
func TestHandleTreeCreate(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "tree@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/trees", tok.AccessToken, TreeCreateRequest{
		EncryptedData: "tree-blob",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var tree models.Tree
	decodeData(t, rec, &tree)
	if tree.ID == uuid.Nil {
		t.Error("Expected a generated tree id")
	}
	if tree.EncryptedData != "tree-blob" {
		t.Errorf("Expected payload to round-trip, got %q", tree.EncryptedData)
	}
	if tree.IsDemo {
		t.Error("Expected is_demo to default to false")
	}
	if tree.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}

	t.Run("second tree conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/trees", tok.AccessToken, TreeCreateRequest{
			EncryptedData: "another-blob",
		})
		apiErr := wantError(t, rec, http.StatusConflict, "CONFLICT")
		if apiErr.Message != "Tree already exists" {
			t.Errorf("Unexpected conflict message: %q", apiErr.Message)
		}
	})

	t.Run("missing payload rejected", func(t *testing.T) {
		other := registerUser(t, env, "empty@example.com")
		rec := env.do(t, http.MethodPost, "/api/v1/trees", other.AccessToken, TreeCreateRequest{})
		wantError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	})
}

// TestHandleTreeList tests tree listing
func TestHandleTreeList(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "list@example.com")

	t.Run("empty before create", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/trees", tok.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}

		var trees []models.Tree
		decodeData(t, rec, &trees)
		if trees == nil {
			t.Fatal("Expected an empty array, not null")
		}
		if len(trees) != 0 {
			t.Errorf("Expected no trees, got %d", len(trees))
		}
	})

	t.Run("owned tree listed", func(t *testing.T) {
		created := createTree(t, env, tok.AccessToken)

		rec := env.do(t, http.MethodGet, "/api/v1/trees", tok.AccessToken, nil)
		var trees []models.Tree
		decodeData(t, rec, &trees)

		if len(trees) != 1 {
			t.Fatalf("Expected 1 tree, got %d", len(trees))
		}
		if trees[0].ID != created.ID {
			t.Error("Listed tree does not match the created one")
		}
	})

	t.Run("other users' trees invisible", func(t *testing.T) {
		other := registerUser(t, env, "list-other@example.com")
		rec := env.do(t, http.MethodGet, "/api/v1/trees", other.AccessToken, nil)

		var trees []models.Tree
		decodeData(t, rec, &trees)
		if len(trees) != 0 {
			t.Errorf("Expected no trees for a fresh user, got %d", len(trees))
		}
	})
}

// TestHandleTreeGet tests single tree retrieval and ownership isolation
func TestHandleTreeGet(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "get@example.com")
	tree := createTree(t, env, tok.AccessToken)

	t.Run("owner reads the tree", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/trees/"+tree.ID.String(), tok.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}

		var got models.Tree
		decodeData(t, rec, &got)
		if got.ID != tree.ID || got.EncryptedData != "tree-blob" {
			t.Error("Tree payload mismatch")
		}
	})

	t.Run("stranger gets 404", func(t *testing.T) {
		other := registerUser(t, env, "get-other@example.com")
		rec := env.do(t, http.MethodGet, "/api/v1/trees/"+tree.ID.String(), other.AccessToken, nil)

		apiErr := wantError(t, rec, http.StatusNotFound, "NOT_FOUND")
		if apiErr.Message != "Tree not found" {
			t.Errorf("Unexpected message: %q", apiErr.Message)
		}
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/trees/"+uuid.NewString(), tok.AccessToken, nil)
		wantError(t, rec, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("malformed id gets 400", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/trees/not-a-uuid", tok.AccessToken, nil)
		wantError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	})
}

// TestHandleTreeUpdate tests tree payload replacement
func TestHandleTreeUpdate(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "update@example.com")
	tree := createTree(t, env, tok.AccessToken)

	rec := env.do(t, http.MethodPut, "/api/v1/trees/"+tree.ID.String(), tok.AccessToken, TreeUpdateRequest{
		EncryptedData: "updated-blob",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var updated models.Tree
	decodeData(t, rec, &updated)
	if updated.EncryptedData != "updated-blob" {
		t.Errorf("Expected updated payload, got %q", updated.EncryptedData)
	}
	if updated.UpdatedAt.Before(tree.UpdatedAt) {
		t.Error("Expected updated_at to move forward")
	}

	t.Run("stranger cannot update", func(t *testing.T) {
		other := registerUser(t, env, "update-other@example.com")
		rec := env.do(t, http.MethodPut, "/api/v1/trees/"+tree.ID.String(), other.AccessToken, TreeUpdateRequest{
			EncryptedData: "hijacked",
		})
		wantError(t, rec, http.StatusNotFound, "NOT_FOUND")

		// Payload untouched.
		rec = env.do(t, http.MethodGet, "/api/v1/trees/"+tree.ID.String(), tok.AccessToken, nil)
		var got models.Tree
		decodeData(t, rec, &got)
		if got.EncryptedData != "updated-blob" {
			t.Error("Stranger update leaked through")
		}
	})
}

// TestHandleTreeDelete tests tree deletion
func TestHandleTreeDelete(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "delete@example.com")
	tree := createTree(t, env, tok.AccessToken)

	rec := env.do(t, http.MethodDelete, "/api/v1/trees/"+tree.ID.String(), tok.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != 0 {
		t.Error("Expected empty body on 204")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/trees/"+tree.ID.String(), tok.AccessToken, nil)
	wantError(t, rec, http.StatusNotFound, "NOT_FOUND")

	t.Run("user can start over", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/trees", tok.AccessToken, TreeCreateRequest{
			EncryptedData: "second-life",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected a fresh tree after delete, got %d", rec.Code)
		}
	})
}

// TestHandleTreeStats tests per-tree record counts
func TestHandleTreeStats(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "stats@example.com")
	tree := createTree(t, env, tok.AccessToken)

	rec := env.do(t, http.MethodGet, "/api/v1/trees/"+tree.ID.String()+"/stats", tok.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var stats models.TreeStats
	decodeData(t, rec, &stats)
	if stats.Persons != 0 || stats.Relationships != 0 {
		t.Errorf("Expected empty tree stats, got %+v", stats)
	}

	createPerson(t, env, tok.AccessToken, tree.ID.String())
	createPerson(t, env, tok.AccessToken, tree.ID.String())

	rec = env.do(t, http.MethodGet, "/api/v1/trees/"+tree.ID.String()+"/stats", tok.AccessToken, nil)
	decodeData(t, rec, &stats)
	if stats.Persons != 2 {
		t.Errorf("Expected 2 persons, got %d", stats.Persons)
	}
}
