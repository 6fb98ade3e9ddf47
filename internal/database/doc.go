// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

// Package database provides DuckDB-backed persistence for users, trees,
// persons, relationships, and the five person-linked record kinds.
//
// The server stores client-encrypted payloads as opaque text blobs and keeps
// only record identity, ownership, and person references in plaintext. There
// are no FOREIGN KEY constraints in the schema: cascade deletes and
// person-reference validation are explicit application logic executed inside
// the caller's transaction, which keeps failure modes visible and lets the
// sync reconciler control ordering.
//
// Connection management, pooling, and the versioned migration runner live in
// database.go and migrations.go. Row operations that must share a transaction
// (everything touched by a sync batch or a CRUD request) are methods on Tx,
// obtained through DB.WithTx. Single-statement operations with no ordering
// requirements (users, waitlist, feedback, counters) are methods on DB.
package database
