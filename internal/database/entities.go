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

// EntityKind describes one of the five person-linked record kinds. All five
// share the same table shape and junction-table layout, so one implementation
// parameterized by EntityKind serves events, life events, turning points,
// classifications, and patterns alike.
//
// Table, JunctionTable, and JunctionFK are interpolated into SQL. They come
// exclusively from the package-level Kind* values below; never construct an
// EntityKind from user input.
type EntityKind struct {
	Label         string // human-readable name used in error messages
	Table         string // entity table name
	JunctionTable string // person-link junction table name
	JunctionFK    string // junction column referencing the entity
}

var (
	KindEvent          = EntityKind{Label: "Event", Table: "events", JunctionTable: "event_persons", JunctionFK: "event_id"}
	KindLifeEvent      = EntityKind{Label: "Life event", Table: "life_events", JunctionTable: "life_event_persons", JunctionFK: "life_event_id"}
	KindTurningPoint   = EntityKind{Label: "Turning point", Table: "turning_points", JunctionTable: "turning_point_persons", JunctionFK: "turning_point_id"}
	KindClassification = EntityKind{Label: "Classification", Table: "classifications", JunctionTable: "classification_persons", JunctionFK: "classification_id"}
	KindPattern        = EntityKind{Label: "Pattern", Table: "patterns", JunctionTable: "pattern_persons", JunctionFK: "pattern_id"}
)

// LinkedKinds lists every linked-entity kind in canonical processing order.
var LinkedKinds = []EntityKind{
	KindEvent,
	KindLifeEvent,
	KindTurningPoint,
	KindClassification,
	KindPattern,
}

// CreateLinkedEntity inserts the entity row. Person links are added
// separately with AddPersonLinks once the caller has validated them.
func (t *Tx) CreateLinkedEntity(ctx context.Context, kind EntityKind, e *models.LinkedEntity) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO %s (id, tree_id, encrypted_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, kind.Table)
	if _, err := t.tx.ExecContext(ctx, query, e.ID, e.TreeID, e.EncryptedData, e.CreatedAt, e.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert %s: %w", kind.Table, err)
	}
	return nil
}

// AddPersonLinks inserts junction rows linking the entity to each person.
// Callers validate the person ids against the tree first. No-op when empty.
func (t *Tx) AddPersonLinks(ctx context.Context, kind EntityKind, entityID uuid.UUID, personIDs []uuid.UUID) error {
	if len(personIDs) == 0 {
		return nil
	}

	values := make([]string, len(personIDs))
	args := make([]interface{}, 0, len(personIDs)*2)
	for i, pid := range personIDs {
		values[i] = "(?, ?)"
		args = append(args, entityID, pid)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s, person_id) VALUES %s`,
		kind.JunctionTable, kind.JunctionFK, strings.Join(values, ", "))
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s links: %w", kind.Table, err)
	}
	return nil
}

// ReplacePersonLinks removes every junction row for the entity and inserts
// the new set. An empty set therefore clears all links.
func (t *Tx) ReplacePersonLinks(ctx context.Context, kind EntityKind, entityID uuid.UUID, personIDs []uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, kind.JunctionTable, kind.JunctionFK)
	if _, err := t.tx.ExecContext(ctx, query, entityID); err != nil {
		return fmt.Errorf("failed to clear %s links: %w", kind.Table, err)
	}
	return t.AddPersonLinks(ctx, kind, entityID, personIDs)
}

// GetLinkedEntity returns the entity with its person links, or ErrNotFound.
func (t *Tx) GetLinkedEntity(ctx context.Context, kind EntityKind, treeID, id uuid.UUID) (*models.LinkedEntity, error) {
	query := fmt.Sprintf(`SELECT id, tree_id, encrypted_data, created_at, updated_at
		FROM %s WHERE tree_id = ? AND id = ?`, kind.Table)

	var e models.LinkedEntity
	err := t.tx.QueryRowContext(ctx, query, treeID, id).Scan(
		&e.ID, &e.TreeID, &e.EncryptedData, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind.Table, err)
	}

	e.PersonIDs, err = t.personLinks(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListLinkedEntities returns every entity of the kind in the tree, person
// links included, ordered by creation time.
func (t *Tx) ListLinkedEntities(ctx context.Context, kind EntityKind, treeID uuid.UUID) ([]models.LinkedEntity, error) {
	query := fmt.Sprintf(`SELECT id, tree_id, encrypted_data, created_at, updated_at
		FROM %s WHERE tree_id = ? ORDER BY created_at, id`, kind.Table)

	rows, err := t.tx.QueryContext(ctx, query, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Table, err)
	}
	defer closeQuietly(rows)

	var entities []models.LinkedEntity
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var e models.LinkedEntity
		if err := rows.Scan(&e.ID, &e.TreeID, &e.EncryptedData, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", kind.Table, err)
		}
		e.PersonIDs = []uuid.UUID{}
		index[e.ID] = len(entities)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", kind.Table, err)
	}
	if len(entities) == 0 {
		return entities, nil
	}

	// One junction pass for the whole tree instead of a query per entity.
	linkQuery := fmt.Sprintf(`SELECT j.%s, j.person_id FROM %s j
		JOIN %s e ON e.id = j.%s
		WHERE e.tree_id = ?
		ORDER BY j.person_id`, kind.JunctionFK, kind.JunctionTable, kind.Table, kind.JunctionFK)

	linkRows, err := t.tx.QueryContext(ctx, linkQuery, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s links: %w", kind.Table, err)
	}
	defer closeQuietly(linkRows)

	for linkRows.Next() {
		var entityID, personID uuid.UUID
		if err := linkRows.Scan(&entityID, &personID); err != nil {
			return nil, fmt.Errorf("failed to scan %s link row: %w", kind.Table, err)
		}
		if i, ok := index[entityID]; ok {
			entities[i].PersonIDs = append(entities[i].PersonIDs, personID)
		}
	}
	if err := linkRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s link rows: %w", kind.Table, err)
	}

	return entities, nil
}

// UpdateLinkedEntityData replaces the encrypted blob. Returns false when the
// id does not exist in the tree.
func (t *Tx) UpdateLinkedEntityData(ctx context.Context, kind EntityKind, treeID, id uuid.UUID, encryptedData string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET encrypted_data = ?, updated_at = ?
		WHERE tree_id = ? AND id = ?`, kind.Table)

	res, err := t.tx.ExecContext(ctx, query, encryptedData, time.Now().UTC(), treeID, id)
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", kind.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read %s update count: %w", kind.Table, err)
	}
	return n > 0, nil
}

// LinkedEntityExists reports whether the id exists in the tree.
func (t *Tx) LinkedEntityExists(ctx context.Context, kind EntityKind, treeID, id uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE tree_id = ? AND id = ?`, kind.Table)

	var one int
	err := t.tx.QueryRowContext(ctx, query, treeID, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", kind.Table, err)
	}
	return true, nil
}

// TouchLinkedEntity bumps updated_at after a person-link change so list
// responses reflect the modification.
func (t *Tx) TouchLinkedEntity(ctx context.Context, kind EntityKind, treeID, id uuid.UUID) error {
	query := fmt.Sprintf(`UPDATE %s SET updated_at = ? WHERE tree_id = ? AND id = ?`, kind.Table)
	if _, err := t.tx.ExecContext(ctx, query, time.Now().UTC(), treeID, id); err != nil {
		return fmt.Errorf("failed to touch %s: %w", kind.Table, err)
	}
	return nil
}

// DeleteLinkedEntities removes the given entities and their junction rows.
// Ids that do not exist in the tree are skipped; the count reflects only
// rows actually removed.
func (t *Tx) DeleteLinkedEntities(ctx context.Context, kind EntityKind, treeID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// Resolve the ids that actually belong to this tree before touching the
	// junction table: junction rows carry no tree scope of their own.
	victims, err := t.existingIDs(ctx, kind.Table, treeID, ids)
	if err != nil {
		return 0, err
	}
	if len(victims) == 0 {
		return 0, nil
	}

	in := placeholders(len(victims))
	args := uuidArgs(victims)

	junction := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, kind.JunctionTable, kind.JunctionFK, in)
	if _, err := t.tx.ExecContext(ctx, junction, args...); err != nil {
		return 0, fmt.Errorf("failed to delete %s links: %w", kind.Table, err)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, kind.Table, in)
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", kind.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s delete count: %w", kind.Table, err)
	}
	return n, nil
}

// personLinks returns the person ids linked to one entity.
func (t *Tx) personLinks(ctx context.Context, kind EntityKind, entityID uuid.UUID) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`SELECT person_id FROM %s WHERE %s = ? ORDER BY person_id`,
		kind.JunctionTable, kind.JunctionFK)

	rows, err := t.tx.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s links: %w", kind.Table, err)
	}
	defer closeQuietly(rows)

	ids := []uuid.UUID{}
	for rows.Next() {
		var pid uuid.UUID
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("failed to scan %s link: %w", kind.Table, err)
		}
		ids = append(ids, pid)
	}
	return ids, rows.Err()
}

// existingIDs narrows ids to those present in table for the tree.
func (t *Tx) existingIDs(ctx context.Context, table string, treeID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE tree_id = ? AND id IN (%s)`,
		table, placeholders(len(ids)))

	args := append([]interface{}{treeID}, uuidArgs(ids)...)
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ids in %s: %w", table, err)
	}
	defer closeQuietly(rows)

	var existing []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id from %s: %w", table, err)
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// uuidArgs converts ids to driver arguments.
func uuidArgs(ids []uuid.UUID) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
