// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

/*
schema.go - Database Schema Management

This file manages the DuckDB schema: table creation and index management.

Tables:
  - users: accounts with bcrypt password hash and client encryption salt
  - trees: one journal container per user, encrypted blob payload
  - persons: tree nodes, encrypted blob payload
  - relationships: directed person-to-person edges with plaintext endpoints
  - events, life_events, turning_points, classifications, patterns:
    person-linked record kinds, identical shape
  - event_persons, life_event_persons, turning_point_persons,
    classification_persons, pattern_persons: junction tables, composite PK
  - waitlist: pending registrations while at capacity
  - feedback: user-submitted messages

Schema Strategy (Pre-Release):
All columns are defined in the initial CREATE TABLE statements. Versioned
migrations in migrations.go take over for post-release changes.

No FOREIGN KEY constraints anywhere: DuckDB has no ON DELETE CASCADE, and the
reconciler needs full control over delete ordering. All cascades are explicit
application logic inside transactions.

Index Strategy:
  - tree_id on every tree-scoped table (the hot filter for every request)
  - relationship endpoints for person-delete cascades
  - junction person_id for person-delete cascades and reverse lookups
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// tableCreationQueries returns the table creation SQL statements
func tableCreationQueries() []string {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			encryption_salt TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS trees (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			encrypted_data TEXT NOT NULL,
			is_demo BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS persons (
			id UUID PRIMARY KEY,
			tree_id UUID NOT NULL,
			encrypted_data TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS relationships (
			id UUID PRIMARY KEY,
			tree_id UUID NOT NULL,
			source_person_id UUID NOT NULL,
			target_person_id UUID NOT NULL,
			encrypted_data TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	// The five linked-entity tables and their junction tables share one shape.
	for _, kind := range LinkedKinds {
		queries = append(queries,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			tree_id UUID NOT NULL,
			encrypted_data TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, kind.Table),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s UUID NOT NULL,
			person_id UUID NOT NULL,
			PRIMARY KEY (%s, person_id)
		)`, kind.JunctionTable, kind.JunctionFK, kind.JunctionFK),
		)
	}

	queries = append(queries,
		`CREATE TABLE IF NOT EXISTS waitlist (
			email TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS feedback (
			id UUID PRIMARY KEY,
			user_id UUID,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	)

	return queries
}

// createIndexes creates indexes for frequently filtered columns
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_trees_user_id ON trees(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_persons_tree_id ON persons(tree_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_tree_id ON relationships(tree_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_person_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_person_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_user_id ON feedback(user_id)`,
	}

	for _, kind := range LinkedKinds {
		indexes = append(indexes,
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_tree_id ON %s(tree_id)`, kind.Table, kind.Table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_person_id ON %s(person_id)`, kind.JunctionTable, kind.JunctionTable),
		)
	}

	for _, index := range indexes {
		if _, err := db.conn.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", index, err)
		}
	}

	return nil
}
