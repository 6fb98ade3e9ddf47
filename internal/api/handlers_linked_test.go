// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/models"
)

// TestLinkedEntityLifecycle runs the create/get/delete cycle for every
// linked kind so all five route mounts stay covered.
func TestLinkedEntityLifecycle(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "linked@example.com")
	tree := createTree(t, env, tok.AccessToken)
	person := createPerson(t, env, tok.AccessToken, tree.ID.String())

	for _, m := range linkedMounts {
		t.Run(m.path, func(t *testing.T) {
			base := "/api/v1/trees/" + tree.ID.String() + "/" + m.path

			rec := env.do(t, http.MethodPost, base, tok.AccessToken, LinkedCreateRequest{
				PersonIDs:     []uuid.UUID{person.ID},
				EncryptedData: m.path + "-blob",
			})
			if rec.Code != http.StatusCreated {
				t.Fatalf("Create returned %d: %s", rec.Code, rec.Body.String())
			}

			var created models.LinkedEntity
			decodeData(t, rec, &created)
			if created.ID == uuid.Nil {
				t.Error("Expected a generated id")
			}
			if len(created.PersonIDs) != 1 || created.PersonIDs[0] != person.ID {
				t.Errorf("Expected person link to round-trip, got %v", created.PersonIDs)
			}

			rec = env.do(t, http.MethodGet, base+"/"+created.ID.String(), tok.AccessToken, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("Get returned %d", rec.Code)
			}

			var got models.LinkedEntity
			decodeData(t, rec, &got)
			if got.EncryptedData != m.path+"-blob" {
				t.Errorf("Payload mismatch: %q", got.EncryptedData)
			}
			if len(got.PersonIDs) != 1 {
				t.Errorf("Expected 1 person link, got %d", len(got.PersonIDs))
			}

			t.Run("404 names the kind", func(t *testing.T) {
				missing := uuid.New()
				rec := env.do(t, http.MethodGet, base+"/"+missing.String(), tok.AccessToken, nil)

				apiErr := wantError(t, rec, http.StatusNotFound, "NOT_FOUND")
				want := m.kind.Label + " " + missing.String() + " not found"
				if apiErr.Message != want {
					t.Errorf("Expected %q, got %q", want, apiErr.Message)
				}
			})

			rec = env.do(t, http.MethodDelete, base+"/"+created.ID.String(), tok.AccessToken, nil)
			if rec.Code != http.StatusNoContent {
				t.Fatalf("Delete returned %d", rec.Code)
			}

			rec = env.do(t, http.MethodDelete, base+"/"+created.ID.String(), tok.AccessToken, nil)
			wantError(t, rec, http.StatusNotFound, "NOT_FOUND")
		})
	}
}

// TestLinkedCreate_Validation tests person link validation on create
func TestLinkedCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "linked-create@example.com")
	tree := createTree(t, env, tok.AccessToken)
	base := "/api/v1/trees/" + tree.ID.String() + "/events"

	t.Run("no person links allowed", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base, tok.AccessToken, LinkedCreateRequest{
			EncryptedData: "unlinked-event",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d (body: %s)", rec.Code, rec.Body.String())
		}

		var created models.LinkedEntity
		decodeData(t, rec, &created)
		if created.PersonIDs == nil {
			t.Error("Expected person_ids to be an empty array, not null")
		}
		if len(created.PersonIDs) != 0 {
			t.Errorf("Expected no links, got %v", created.PersonIDs)
		}
	})

	t.Run("unknown person id enumerated", func(t *testing.T) {
		ghost := uuid.New()
		rec := env.do(t, http.MethodPost, base, tok.AccessToken, LinkedCreateRequest{
			PersonIDs:     []uuid.UUID{ghost},
			EncryptedData: "bad-link",
		})

		apiErr := wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
		want := "person_ids not found in this tree: ['" + ghost.String() + "']"
		if apiErr.Message != want {
			t.Errorf("Expected %q, got %q", want, apiErr.Message)
		}
	})

	t.Run("person from another tree rejected", func(t *testing.T) {
		other := registerUser(t, env, "linked-other@example.com")
		otherTree := createTree(t, env, other.AccessToken)
		foreign := createPerson(t, env, other.AccessToken, otherTree.ID.String())

		rec := env.do(t, http.MethodPost, base, tok.AccessToken, LinkedCreateRequest{
			PersonIDs:     []uuid.UUID{foreign.ID},
			EncryptedData: "cross-tree",
		})
		apiErr := wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
		if !strings.Contains(apiErr.Message, foreign.ID.String()) {
			t.Errorf("Expected the foreign id to be named, got %q", apiErr.Message)
		}
	})

	t.Run("missing payload rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base, tok.AccessToken, LinkedCreateRequest{})
		wantError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	})
}

// TestLinkedUpdate tests the tri-state person_ids update semantics
func TestLinkedUpdate(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "linked-update@example.com")
	tree := createTree(t, env, tok.AccessToken)
	personA := createPerson(t, env, tok.AccessToken, tree.ID.String())
	personB := createPerson(t, env, tok.AccessToken, tree.ID.String())
	base := "/api/v1/trees/" + tree.ID.String() + "/events"

	rec := env.do(t, http.MethodPost, base, tok.AccessToken, LinkedCreateRequest{
		PersonIDs:     []uuid.UUID{personA.ID},
		EncryptedData: "event-blob",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create returned %d", rec.Code)
	}
	var event models.LinkedEntity
	decodeData(t, rec, &event)
	path := base + "/" + event.ID.String()

	t.Run("absent person_ids leaves links untouched", func(t *testing.T) {
		data := "rewritten"
		rec := env.do(t, http.MethodPut, path, tok.AccessToken, LinkedUpdateRequest{
			EncryptedData: &data,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d (body: %s)", rec.Code, rec.Body.String())
		}

		var updated models.LinkedEntity
		decodeData(t, rec, &updated)
		if updated.EncryptedData != "rewritten" {
			t.Errorf("Expected updated payload, got %q", updated.EncryptedData)
		}
		if len(updated.PersonIDs) != 1 || updated.PersonIDs[0] != personA.ID {
			t.Errorf("Links changed on a payload-only update: %v", updated.PersonIDs)
		}
	})

	t.Run("non-empty list replaces links", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, path, tok.AccessToken, LinkedUpdateRequest{
			PersonIDs: models.OptionalIDList{Set: true, IDs: []uuid.UUID{personB.ID}},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}

		var updated models.LinkedEntity
		decodeData(t, rec, &updated)
		if len(updated.PersonIDs) != 1 || updated.PersonIDs[0] != personB.ID {
			t.Errorf("Expected links replaced with %s, got %v", personB.ID, updated.PersonIDs)
		}
	})

	t.Run("empty list clears links", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, path, tok.AccessToken, LinkedUpdateRequest{
			PersonIDs: models.OptionalIDList{Set: true, IDs: []uuid.UUID{}},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}

		var updated models.LinkedEntity
		decodeData(t, rec, &updated)
		if len(updated.PersonIDs) != 0 {
			t.Errorf("Expected links cleared, got %v", updated.PersonIDs)
		}
	})

	t.Run("unknown link target rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, path, tok.AccessToken, LinkedUpdateRequest{
			PersonIDs: models.OptionalIDList{Set: true, IDs: []uuid.UUID{uuid.New()}},
		})
		wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	})

	t.Run("unknown entity 404", func(t *testing.T) {
		data := "ghost"
		rec := env.do(t, http.MethodPut, base+"/"+uuid.NewString(), tok.AccessToken, LinkedUpdateRequest{
			EncryptedData: &data,
		})
		wantError(t, rec, http.StatusNotFound, "NOT_FOUND")
	})
}

// TestLinkedList tests listing with person links loaded
func TestLinkedList(t *testing.T) {
	env := newTestEnv(t)
	tok := registerUser(t, env, "linked-list@example.com")
	tree := createTree(t, env, tok.AccessToken)
	person := createPerson(t, env, tok.AccessToken, tree.ID.String())
	base := "/api/v1/trees/" + tree.ID.String() + "/patterns"

	rec := env.do(t, http.MethodGet, base, tok.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var entities []models.LinkedEntity
	decodeData(t, rec, &entities)
	if entities == nil {
		t.Fatal("Expected an empty array, not null")
	}

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, base, tok.AccessToken, LinkedCreateRequest{
			PersonIDs:     []uuid.UUID{person.ID},
			EncryptedData: "pattern-blob",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Create %d returned %d", i, rec.Code)
		}
	}

	rec = env.do(t, http.MethodGet, base, tok.AccessToken, nil)
	decodeData(t, rec, &entities)
	if len(entities) != 3 {
		t.Fatalf("Expected 3 patterns, got %d", len(entities))
	}
	for _, e := range entities {
		if len(e.PersonIDs) != 1 || e.PersonIDs[0] != person.ID {
			t.Errorf("Expected person links to be loaded, got %v", e.PersonIDs)
		}
	}
}
