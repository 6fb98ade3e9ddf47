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

// CreatePerson inserts a person row, generating an id when none is supplied.
func (t *Tx) CreatePerson(ctx context.Context, p *models.Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := t.tx.ExecContext(ctx, `INSERT INTO persons (id, tree_id, encrypted_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.TreeID, p.EncryptedData, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	return nil
}

// GetPerson returns the person, or ErrNotFound if the id is not in the tree.
func (t *Tx) GetPerson(ctx context.Context, treeID, id uuid.UUID) (*models.Person, error) {
	var p models.Person
	err := t.tx.QueryRowContext(ctx, `SELECT id, tree_id, encrypted_data, created_at, updated_at
		FROM persons WHERE tree_id = ? AND id = ?`, treeID, id).Scan(
		&p.ID, &p.TreeID, &p.EncryptedData, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return &p, nil
}

// ListPersons returns every person in the tree ordered by creation time.
func (t *Tx) ListPersons(ctx context.Context, treeID uuid.UUID) ([]models.Person, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, tree_id, encrypted_data, created_at, updated_at
		FROM persons WHERE tree_id = ? ORDER BY created_at, id`, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer closeQuietly(rows)

	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.TreeID, &p.EncryptedData, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan person row: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// UpdatePersonData replaces the encrypted blob. Returns false when the id
// does not exist in the tree.
func (t *Tx) UpdatePersonData(ctx context.Context, treeID, id uuid.UUID, encryptedData string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE persons SET encrypted_data = ?, updated_at = ?
		WHERE tree_id = ? AND id = ?`,
		encryptedData, time.Now().UTC(), treeID, id)
	if err != nil {
		return false, fmt.Errorf("failed to update person: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read person update count: %w", err)
	}
	return n > 0, nil
}

// DeletePersons removes the given persons with full cascade: relationships
// touching them, their junction rows in every linked kind, then the person
// rows. Ids not in the tree are skipped; the count reflects only persons
// actually removed. Linked entities themselves survive, only associations
// are cleared.
func (t *Tx) DeletePersons(ctx context.Context, treeID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// Scope the cascade to persons that really live in this tree; junction
	// tables and relationship endpoints carry no tree column to filter on.
	victims, err := t.existingIDs(ctx, "persons", treeID, ids)
	if err != nil {
		return 0, err
	}
	if len(victims) == 0 {
		return 0, nil
	}

	in := placeholders(len(victims))
	args := uuidArgs(victims)

	relArgs := append(uuidArgs(victims), uuidArgs(victims)...)
	if _, err := t.tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM relationships WHERE source_person_id IN (%s) OR target_person_id IN (%s)`, in, in),
		relArgs...); err != nil {
		return 0, fmt.Errorf("failed to delete relationships for persons: %w", err)
	}

	for _, kind := range LinkedKinds {
		query := fmt.Sprintf(`DELETE FROM %s WHERE person_id IN (%s)`, kind.JunctionTable, in)
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("failed to delete %s links for persons: %w", kind.Table, err)
		}
	}

	res, err := t.tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM persons WHERE id IN (%s)`, in), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete persons: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read person delete count: %w", err)
	}
	return n, nil
}

// PersonIDSet returns which of the given ids exist in the tree. The input
// may contain duplicates; the result is a set.
func (t *Tx) PersonIDSet(ctx context.Context, treeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	found := make(map[uuid.UUID]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	existing, err := t.existingIDs(ctx, "persons", treeID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		found[id] = struct{}{}
	}
	return found, nil
}
