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
)

// CountUsers returns the total number of accounts.
func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	return db.countAll(ctx, "users")
}

// CountVerifiedUsers returns the number of accounts with a verified email.
// The capacity gate compares this against the configured cap.
func (db *DB) CountVerifiedUsers(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var count int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email_verified = TRUE`).Scan(&count)
	metrics.RecordDBQuery("select", "users", time.Since(start), err)

	if err != nil {
		return 0, fmt.Errorf("failed to count verified users: %w", err)
	}
	return count, nil
}

// CountTrees returns the total number of trees.
func (db *DB) CountTrees(ctx context.Context) (int64, error) {
	return db.countAll(ctx, "trees")
}

// countAll counts rows in one of the fixed schema tables.
func (db *DB) countAll(ctx context.Context, table string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var count int64
	err := db.conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count)
	metrics.RecordDBQuery("select", table, time.Since(start), err)

	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}
