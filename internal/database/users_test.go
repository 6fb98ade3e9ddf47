// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/models"
)

func TestCreateUserAndLookup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	u := &models.User{
		Email:          "ada@example.com",
		PasswordHash:   "$2a$12$hash",
		EncryptionSalt: "c2FsdA==",
	}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Fatal("CreateUser did not assign an id")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("CreateUser did not set timestamps")
	}

	byEmail, err := db.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("GetUserByEmail id = %s, want %s", byEmail.ID, u.ID)
	}
	if byEmail.EncryptionSalt != "c2FsdA==" {
		t.Errorf("EncryptionSalt = %q, want %q", byEmail.EncryptionSalt, "c2FsdA==")
	}

	byID, err := db.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != u.Email {
		t.Errorf("GetUserByID email = %q, want %q", byID.Email, u.Email)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &models.User{Email: "dup@example.com", PasswordHash: "h", EncryptionSalt: "s"}
	if err := db.CreateUser(ctx, first); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	second := &models.User{Email: "dup@example.com", PasswordHash: "h2", EncryptionSalt: "s2"}
	err := db.CreateUser(ctx, second)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("CreateUser duplicate = %v, want ErrDuplicate", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID = %v, want ErrNotFound", err)
	}
}

func TestMarkEmailVerified(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	u := &models.User{Email: "verify@example.com", PasswordHash: "h", EncryptionSalt: "s"}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.EmailVerified {
		t.Fatal("new user must start unverified")
	}

	if err := db.MarkEmailVerified(ctx, u.ID); err != nil {
		t.Fatalf("MarkEmailVerified failed: %v", err)
	}

	got, err := db.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if !got.EmailVerified {
		t.Error("user still unverified after MarkEmailVerified")
	}

	if err := db.MarkEmailVerified(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkEmailVerified unknown id = %v, want ErrNotFound", err)
	}
}

func TestVerifiedUserCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i, verified := range []bool{true, true, false} {
		u := &models.User{
			Email:          uuid.NewString() + "@example.com",
			PasswordHash:   "h",
			EncryptionSalt: "s",
			EmailVerified:  verified,
		}
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser %d failed: %v", i, err)
		}
	}

	total, err := db.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if total != 3 {
		t.Errorf("CountUsers = %d, want 3", total)
	}

	verified, err := db.CountVerifiedUsers(ctx)
	if err != nil {
		t.Fatalf("CountVerifiedUsers failed: %v", err)
	}
	if verified != 2 {
		t.Errorf("CountVerifiedUsers = %d, want 2", verified)
	}
}

func TestWaitlistLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.AddToWaitlist(ctx, "first@example.com"); err != nil {
		t.Fatalf("AddToWaitlist failed: %v", err)
	}
	// Joining twice is idempotent.
	if err := db.AddToWaitlist(ctx, "first@example.com"); err != nil {
		t.Fatalf("AddToWaitlist repeat failed: %v", err)
	}
	if err := db.AddToWaitlist(ctx, "second@example.com"); err != nil {
		t.Fatalf("AddToWaitlist failed: %v", err)
	}

	entries, err := db.ListWaitlist(ctx)
	if err != nil {
		t.Fatalf("ListWaitlist failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListWaitlist returned %d entries, want 2", len(entries))
	}

	count, err := db.CountWaitlist(ctx)
	if err != nil {
		t.Fatalf("CountWaitlist failed: %v", err)
	}
	if count != 2 {
		t.Errorf("CountWaitlist = %d, want 2", count)
	}

	removed, err := db.RemoveFromWaitlist(ctx, "first@example.com")
	if err != nil {
		t.Fatalf("RemoveFromWaitlist failed: %v", err)
	}
	if !removed {
		t.Error("RemoveFromWaitlist = false for present email")
	}

	removed, err = db.RemoveFromWaitlist(ctx, "gone@example.com")
	if err != nil {
		t.Fatalf("RemoveFromWaitlist failed: %v", err)
	}
	if removed {
		t.Error("RemoveFromWaitlist = true for absent email")
	}
}

func TestCreateFeedback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	u := &models.User{Email: "fb@example.com", PasswordHash: "h", EncryptionSalt: "s"}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	named := &models.Feedback{UserID: &u.ID, Category: "bug", Message: "sync drops my edits"}
	if err := db.CreateFeedback(ctx, named); err != nil {
		t.Fatalf("CreateFeedback failed: %v", err)
	}

	anon := &models.Feedback{Category: "general", Message: "thank you"}
	if err := db.CreateFeedback(ctx, anon); err != nil {
		t.Fatalf("CreateFeedback anonymous failed: %v", err)
	}

	items, err := db.ListFeedback(ctx)
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ListFeedback returned %d items, want 2", len(items))
	}

	var sawNamed, sawAnon bool
	for _, f := range items {
		switch f.Category {
		case "bug":
			sawNamed = f.UserID != nil && *f.UserID == u.ID
		case "general":
			sawAnon = f.UserID == nil
		}
	}
	if !sawNamed {
		t.Error("named feedback lost its user id")
	}
	if !sawAnon {
		t.Error("anonymous feedback should have no user id")
	}
}
