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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/models"
)

// CreateRelationship inserts a relationship row. Source and target person
// ids must be validated against the tree before calling.
func (t *Tx) CreateRelationship(ctx context.Context, r *models.Relationship) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := t.tx.ExecContext(ctx, `INSERT INTO relationships
		(id, tree_id, source_person_id, target_person_id, encrypted_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TreeID, r.SourcePersonID, r.TargetPersonID, r.EncryptedData, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

// GetRelationship returns the relationship, or ErrNotFound.
func (t *Tx) GetRelationship(ctx context.Context, treeID, id uuid.UUID) (*models.Relationship, error) {
	var r models.Relationship
	err := t.tx.QueryRowContext(ctx, `SELECT id, tree_id, source_person_id, target_person_id, encrypted_data, created_at, updated_at
		FROM relationships WHERE tree_id = ? AND id = ?`, treeID, id).Scan(
		&r.ID, &r.TreeID, &r.SourcePersonID, &r.TargetPersonID, &r.EncryptedData, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return &r, nil
}

// ListRelationships returns every relationship in the tree ordered by
// creation time.
func (t *Tx) ListRelationships(ctx context.Context, treeID uuid.UUID) ([]models.Relationship, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, tree_id, source_person_id, target_person_id, encrypted_data, created_at, updated_at
		FROM relationships WHERE tree_id = ? ORDER BY created_at, id`, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer closeQuietly(rows)

	var relationships []models.Relationship
	for rows.Next() {
		var r models.Relationship
		if err := rows.Scan(&r.ID, &r.TreeID, &r.SourcePersonID, &r.TargetPersonID, &r.EncryptedData, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship row: %w", err)
		}
		relationships = append(relationships, r)
	}
	return relationships, rows.Err()
}

// RelationshipFields carries the independently updatable relationship
// fields. A nil field is left untouched. Changed person references must be
// validated against the tree before calling.
type RelationshipFields struct {
	EncryptedData  *string
	SourcePersonID *uuid.UUID
	TargetPersonID *uuid.UUID
}

// Empty reports whether no field is present.
func (f RelationshipFields) Empty() bool {
	return f.EncryptedData == nil && f.SourcePersonID == nil && f.TargetPersonID == nil
}

// UpdateRelationshipFields applies the present fields. Returns false when
// the id does not exist in the tree.
func (t *Tx) UpdateRelationshipFields(ctx context.Context, treeID, id uuid.UUID, fields RelationshipFields) (bool, error) {
	set := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	if fields.EncryptedData != nil {
		set = append(set, "encrypted_data = ?")
		args = append(args, *fields.EncryptedData)
	}
	if fields.SourcePersonID != nil {
		set = append(set, "source_person_id = ?")
		args = append(args, *fields.SourcePersonID)
	}
	if fields.TargetPersonID != nil {
		set = append(set, "target_person_id = ?")
		args = append(args, *fields.TargetPersonID)
	}
	if len(set) == 0 {
		return t.RelationshipExists(ctx, treeID, id)
	}

	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), treeID, id)

	query := fmt.Sprintf(`UPDATE relationships SET %s WHERE tree_id = ? AND id = ?`, strings.Join(set, ", "))
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update relationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read relationship update count: %w", err)
	}
	return n > 0, nil
}

// RelationshipExists reports whether the id exists in the tree.
func (t *Tx) RelationshipExists(ctx context.Context, treeID, id uuid.UUID) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM relationships WHERE tree_id = ? AND id = ?`, treeID, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check relationship existence: %w", err)
	}
	return true, nil
}

// DeleteRelationships removes the given relationships. Ids not in the tree
// are skipped; the count reflects only rows actually removed.
func (t *Tx) DeleteRelationships(ctx context.Context, treeID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := append([]interface{}{treeID}, uuidArgs(ids)...)
	res, err := t.tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM relationships WHERE tree_id = ? AND id IN (%s)`, placeholders(len(ids))),
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete relationships: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read relationship delete count: %w", err)
	}
	return n, nil
}
