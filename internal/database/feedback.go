// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/metrics"
	"github.com/stemmahq/stemma/internal/models"
)

// CreateFeedback stores a feedback message. UserID stays NULL for anonymous
// submissions.
func (db *DB) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now().UTC()

	var userID interface{}
	if f.UserID != nil {
		userID = *f.UserID
	}

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `INSERT INTO feedback (id, user_id, category, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, userID, f.Category, f.Message, f.CreatedAt)
	metrics.RecordDBQuery("insert", "feedback", time.Since(start), err)

	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns all feedback, newest first, for the admin surface.
func (db *DB) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT id, user_id, category, message, created_at
		FROM feedback ORDER BY created_at DESC, id`)
	metrics.RecordDBQuery("select", "feedback", time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer closeQuietly(rows)

	var items []models.Feedback
	for rows.Next() {
		var f models.Feedback
		var userID uuid.NullUUID
		if err := rows.Scan(&f.ID, &userID, &f.Category, &f.Message, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		if userID.Valid {
			f.UserID = &userID.UUID
		}
		items = append(items, f)
	}
	return items, rows.Err()
}
