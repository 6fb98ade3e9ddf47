// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/stemmahq/stemma/internal/metrics"
	"github.com/stemmahq/stemma/internal/models"
)

// AddToWaitlist records an email waiting for a registration slot. Joining
// is idempotent: an address already on the list succeeds silently.
func (db *DB) AddToWaitlist(ctx context.Context, email string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO waitlist (email, created_at) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		email, time.Now().UTC())
	metrics.RecordDBQuery("insert", "waitlist", time.Since(start), err)

	if err != nil {
		return fmt.Errorf("failed to add to waitlist: %w", err)
	}
	return nil
}

// ListWaitlist returns all waiting addresses, oldest first.
func (db *DB) ListWaitlist(ctx context.Context) ([]models.WaitlistEntry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT email, created_at FROM waitlist ORDER BY created_at, email`)
	metrics.RecordDBQuery("select", "waitlist", time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	defer closeQuietly(rows)

	var entries []models.WaitlistEntry
	for rows.Next() {
		var e models.WaitlistEntry
		if err := rows.Scan(&e.Email, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan waitlist row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RemoveFromWaitlist deletes an address, reporting whether it was present.
// Called by admins and by successful registration.
func (db *DB) RemoveFromWaitlist(ctx context.Context, email string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `DELETE FROM waitlist WHERE email = ?`, email)
	metrics.RecordDBQuery("delete", "waitlist", time.Since(start), err)

	if err != nil {
		return false, fmt.Errorf("failed to remove from waitlist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read waitlist delete count: %w", err)
	}
	return n > 0, nil
}

// CountWaitlist returns the number of waiting addresses.
func (db *DB) CountWaitlist(ctx context.Context) (int64, error) {
	return db.countAll(ctx, "waitlist")
}
