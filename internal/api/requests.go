// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/models"
)

// RegisterRequest creates an account. The encryption salt is generated by
// the client, stored verbatim, and handed back on login so a new device can
// derive the same key; the server never derives anything from it.
type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email,max=255"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	EncryptionSalt string `json:"encryption_salt" validate:"required,max=255"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// RefreshRequest trades a refresh token for a fresh access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest revokes the caller's refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is the credential payload returned by register, login, and
// refresh. Refresh responses omit the salt; the client already holds it.
type TokenResponse struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	TokenType      string `json:"token_type"`
	EncryptionSalt string `json:"encryption_salt,omitempty"`
}

// MessageResponse carries a single machine-readable outcome string.
type MessageResponse struct {
	Message string `json:"message"`
}

// TreeCreateRequest creates the caller's tree.
type TreeCreateRequest struct {
	EncryptedData string `json:"encrypted_data" validate:"required"`
	IsDemo        bool   `json:"is_demo"`
}

// TreeUpdateRequest replaces the tree's metadata blob.
type TreeUpdateRequest struct {
	EncryptedData string `json:"encrypted_data" validate:"required"`
}

// PersonCreateRequest adds a person. Clients that pre-assign ids for
// offline work may send one; otherwise the server picks it.
type PersonCreateRequest struct {
	ID            uuid.UUID `json:"id"`
	EncryptedData string    `json:"encrypted_data" validate:"required"`
}

// PersonUpdateRequest replaces a person's blob.
type PersonUpdateRequest struct {
	EncryptedData string `json:"encrypted_data" validate:"required"`
}

// RelationshipCreateRequest links two persons of the same tree.
type RelationshipCreateRequest struct {
	ID             uuid.UUID `json:"id"`
	SourcePersonID uuid.UUID `json:"source_person_id" validate:"required"`
	TargetPersonID uuid.UUID `json:"target_person_id" validate:"required"`
	EncryptedData  string    `json:"encrypted_data" validate:"required"`
}

// RelationshipUpdateRequest rewrites any subset of a relationship's fields.
// Nil fields stay untouched.
type RelationshipUpdateRequest struct {
	SourcePersonID *uuid.UUID `json:"source_person_id"`
	TargetPersonID *uuid.UUID `json:"target_person_id"`
	EncryptedData  *string    `json:"encrypted_data"`
}

// LinkedCreateRequest adds an event, life event, turning point,
// classification, or pattern together with its person links.
type LinkedCreateRequest struct {
	ID            uuid.UUID   `json:"id"`
	PersonIDs     []uuid.UUID `json:"person_ids"`
	EncryptedData string      `json:"encrypted_data" validate:"required"`
}

// LinkedUpdateRequest rewrites a linked entity. person_ids is tri-state:
// absent or null leaves the links untouched, an empty list clears them, a
// non-empty list replaces them.
type LinkedUpdateRequest struct {
	PersonIDs     models.OptionalIDList `json:"person_ids"`
	EncryptedData *string               `json:"encrypted_data"`
}

// FeedbackRequest stores a feedback row and mails the operator. Anonymous
// submissions drop the sender's identity from both.
type FeedbackRequest struct {
	Category  string `json:"category" validate:"omitempty,max=64"`
	Message   string `json:"message" validate:"required,max=10000"`
	Anonymous bool   `json:"anonymous"`
}

// FeedbackAcceptedResponse returns the stored row's id.
type FeedbackAcceptedResponse struct {
	ID uuid.UUID `json:"id"`
}

// WaitlistJoinRequest asks for a spot once registration fills up.
type WaitlistJoinRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// AdminStatsResponse reports instance occupancy for operators.
// CapacityRemaining is nil when no user cap is configured.
type AdminStatsResponse struct {
	TotalUsers        int64  `json:"total_users"`
	VerifiedUsers     int64  `json:"verified_users"`
	TotalTrees        int64  `json:"total_trees"`
	WaitlistCount     int64  `json:"waitlist_count"`
	MaxActiveUsers    int    `json:"max_active_users"`
	WaitlistEnabled   bool   `json:"waitlist_enabled"`
	CapacityRemaining *int64 `json:"capacity_remaining,omitempty"`
}

// HealthResponse reports liveness and the database round trip.
type HealthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
