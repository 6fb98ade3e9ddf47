// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package models

import (
	"time"

	"github.com/google/uuid"
)

// Person is a node in a family tree. All identifying content (name, dates,
// notes) lives inside the client-encrypted blob; the server only knows the
// record's identity and which tree it belongs to.
type Person struct {
	ID            uuid.UUID `json:"id"`
	TreeID        uuid.UUID `json:"-"`
	EncryptedData string    `json:"encrypted_data"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Relationship is a directed edge between two persons in the same tree.
// The relationship type (parent, partner, sibling) is part of the encrypted
// payload; source and target person ids stay in plaintext so the server can
// validate referential integrity without decrypting anything.
type Relationship struct {
	ID             uuid.UUID `json:"id"`
	TreeID         uuid.UUID `json:"-"`
	SourcePersonID uuid.UUID `json:"source_person_id"`
	TargetPersonID uuid.UUID `json:"target_person_id"`
	EncryptedData  string    `json:"encrypted_data"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LinkedEntity is the shared shape of the five person-linked record kinds:
// events, life events, turning points, classifications, and patterns. Each
// carries an encrypted payload plus a plaintext set of linked person ids
// maintained through a junction table.
type LinkedEntity struct {
	ID            uuid.UUID   `json:"id"`
	TreeID        uuid.UUID   `json:"-"`
	EncryptedData string      `json:"encrypted_data"`
	PersonIDs     []uuid.UUID `json:"person_ids"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Feedback is a categorized free-form message submitted by an authenticated
// user. UserID is nil when the submitter chose to stay anonymous.
type Feedback struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Category  string     `json:"category"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

// WaitlistEntry records an email address waiting for a registration slot
// while the instance is at capacity.
type WaitlistEntry struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
