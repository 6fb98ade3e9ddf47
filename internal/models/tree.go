// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package models

import (
	"time"

	"github.com/google/uuid"
)

// Tree is the root container for a user's family history journal. Each user
// owns at most one tree. EncryptedData holds the client-encrypted tree-level
// payload (title, settings, layout); the server stores it as an opaque blob.
type Tree struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"-"`
	EncryptedData string    `json:"encrypted_data"`
	IsDemo        bool      `json:"is_demo"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TreeStats summarizes record counts for a single tree, served by
// GET /trees/{treeID}/stats.
type TreeStats struct {
	Persons         int64 `json:"persons"`
	Relationships   int64 `json:"relationships"`
	Events          int64 `json:"events"`
	LifeEvents      int64 `json:"life_events"`
	TurningPoints   int64 `json:"turning_points"`
	Classifications int64 `json:"classifications"`
	Patterns        int64 `json:"patterns"`
}
