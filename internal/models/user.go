// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. The server never sees plaintext journal
// content; it stores only the per-user encryption salt the client derives its
// key from, and the bcrypt hash of the login password.
//
// PasswordHash is excluded from JSON serialization and must never appear in
// API responses or logs.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	EncryptionSalt string    `json:"encryption_salt"`
	IsAdmin        bool      `json:"is_admin"`
	EmailVerified  bool      `json:"email_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PublicUser is the account representation returned by /auth/me and the
// registration and login endpoints. It mirrors User minus server-side fields.
type PublicUser struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	EncryptionSalt string    `json:"encryption_salt"`
	IsAdmin        bool      `json:"is_admin"`
	EmailVerified  bool      `json:"email_verified"`
	CreatedAt      time.Time `json:"created_at"`
}

// Public converts a User to its API-safe representation.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Email:          u.Email,
		EncryptionSalt: u.EncryptionSalt,
		IsAdmin:        u.IsAdmin,
		EmailVerified:  u.EmailVerified,
		CreatedAt:      u.CreatedAt,
	}
}
