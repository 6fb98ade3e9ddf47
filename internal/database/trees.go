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

	"github.com/stemmahq/stemma/internal/models"
)

// CreateTree inserts a tree row. One-tree-per-user is enforced by the
// handler with UserHasTree; this method only writes the row.
func (t *Tx) CreateTree(ctx context.Context, tree *models.Tree) error {
	if tree.ID == uuid.Nil {
		tree.ID = uuid.New()
	}
	now := time.Now().UTC()
	tree.CreatedAt = now
	tree.UpdatedAt = now

	_, err := t.tx.ExecContext(ctx, `INSERT INTO trees (id, user_id, encrypted_data, is_demo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tree.ID, tree.UserID, tree.EncryptedData, tree.IsDemo, tree.CreatedAt, tree.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tree: %w", err)
	}
	return nil
}

// GetTreeForUser resolves a tree by id AND owner. A tree that exists but
// belongs to someone else yields ErrNotFound, indistinguishable from an
// absent tree.
func (t *Tx) GetTreeForUser(ctx context.Context, treeID, userID uuid.UUID) (*models.Tree, error) {
	var tree models.Tree
	err := t.tx.QueryRowContext(ctx, `SELECT id, user_id, encrypted_data, is_demo, created_at, updated_at
		FROM trees WHERE id = ? AND user_id = ?`, treeID, userID).Scan(
		&tree.ID, &tree.UserID, &tree.EncryptedData, &tree.IsDemo, &tree.CreatedAt, &tree.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	return &tree, nil
}

// ListTreesForUser returns the user's trees, oldest first. The create
// handler keeps this at zero or one.
func (t *Tx) ListTreesForUser(ctx context.Context, userID uuid.UUID) ([]models.Tree, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, user_id, encrypted_data, is_demo, created_at, updated_at
		FROM trees WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}
	defer closeQuietly(rows)

	var trees []models.Tree
	for rows.Next() {
		var tree models.Tree
		if err := rows.Scan(&tree.ID, &tree.UserID, &tree.EncryptedData, &tree.IsDemo, &tree.CreatedAt, &tree.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tree row: %w", err)
		}
		trees = append(trees, tree)
	}
	return trees, rows.Err()
}

// UserHasTree reports whether the user already owns a tree.
func (t *Tx) UserHasTree(ctx context.Context, userID uuid.UUID) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM trees WHERE user_id = ? LIMIT 1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tree ownership: %w", err)
	}
	return true, nil
}

// UpdateTreeData replaces the encrypted blob. Returns false when the id
// does not exist.
func (t *Tx) UpdateTreeData(ctx context.Context, treeID uuid.UUID, encryptedData string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE trees SET encrypted_data = ?, updated_at = ? WHERE id = ?`,
		encryptedData, time.Now().UTC(), treeID)
	if err != nil {
		return false, fmt.Errorf("failed to update tree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read tree update count: %w", err)
	}
	return n > 0, nil
}

// DeleteTree removes the tree and everything in it: junction rows and rows
// for all five linked kinds, relationships, persons, then the tree itself.
// The caller resolves ownership first.
func (t *Tx) DeleteTree(ctx context.Context, treeID uuid.UUID) error {
	for _, kind := range LinkedKinds {
		junction := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (SELECT id FROM %s WHERE tree_id = ?)`,
			kind.JunctionTable, kind.JunctionFK, kind.Table)
		if _, err := t.tx.ExecContext(ctx, junction, treeID); err != nil {
			return fmt.Errorf("failed to delete %s links for tree: %w", kind.Table, err)
		}
		if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE tree_id = ?`, kind.Table), treeID); err != nil {
			return fmt.Errorf("failed to delete %s for tree: %w", kind.Table, err)
		}
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM relationships WHERE tree_id = ?`, treeID); err != nil {
		return fmt.Errorf("failed to delete relationships for tree: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM persons WHERE tree_id = ?`, treeID); err != nil {
		return fmt.Errorf("failed to delete persons for tree: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM trees WHERE id = ?`, treeID); err != nil {
		return fmt.Errorf("failed to delete tree: %w", err)
	}
	return nil
}

// TreeStats counts the records of every kind in the tree.
func (t *Tx) TreeStats(ctx context.Context, treeID uuid.UUID) (*models.TreeStats, error) {
	var stats models.TreeStats

	counts := []struct {
		table string
		dest  *int64
	}{
		{"persons", &stats.Persons},
		{"relationships", &stats.Relationships},
		{KindEvent.Table, &stats.Events},
		{KindLifeEvent.Table, &stats.LifeEvents},
		{KindTurningPoint.Table, &stats.TurningPoints},
		{KindClassification.Table, &stats.Classifications},
		{KindPattern.Table, &stats.Patterns},
	}

	for _, c := range counts {
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tree_id = ?`, c.table)
		if err := t.tx.QueryRowContext(ctx, query, treeID).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	return &stats, nil
}
