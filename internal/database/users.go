// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/metrics"
	"github.com/stemmahq/stemma/internal/models"
)

const userColumns = `id, email, password_hash, encryption_salt, is_admin, email_verified, created_at, updated_at`

// CreateUser inserts a new account. A duplicate email surfaces as
// ErrDuplicate so the handler can answer 409.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.EncryptionSalt, u.IsAdmin, u.EmailVerified, u.CreatedAt, u.UpdatedAt)
	metrics.RecordDBQuery("insert", "users", time.Since(start), err)

	if IsDuplicateKey(err) {
		return fmt.Errorf("email %s: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the account for the email, or ErrNotFound.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var u models.User
	err := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.EncryptionSalt, &u.IsAdmin, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	metrics.RecordDBQuery("select", "users", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID returns the account for the id, or ErrNotFound.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var u models.User
	err := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.EncryptionSalt, &u.IsAdmin, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	metrics.RecordDBQuery("select", "users", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &u, nil
}

// MarkEmailVerified flips the verification flag. Returns ErrNotFound for an
// unknown id.
func (db *DB) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET email_verified = TRUE, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	metrics.RecordDBQuery("update", "users", time.Since(start), err)

	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read verification update count: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
