// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

/*
Package sync implements bulk tree reconciliation: one request carries creates,
updates, and deletes across every entity kind and is applied atomically.

Multi-device journaling clients work against a local copy of their tree and
push accumulated changes as a single batch. The Reconciler executes the batch
inside one database transaction with a fixed phase order:

 1. Deletes: relationships, then each linked kind, then persons. Removing
    dependents first keeps person rows referenced until nothing points at
    them. Ids that name no row in the tree are skipped, not errors; the
    per-kind deleted counts cover only rows actually removed.

 2. Creates: persons first, so persons created by this batch are visible to
    validation. Every person id referenced by the batch's relationship and
    linked-entity creates is then validated against the tree in one pass.
    Relationships follow, then each linked kind's rows, with junction rows
    inserted once the kind's parent rows exist. Clients may supply their own
    ids; missing ids are generated server-side. Created ids are reported in
    input order.

 3. Updates: persons, then relationships (each present field independently,
    with changed person references re-validated), then each linked kind
    (blob if present; person_ids omitted leaves links untouched, empty
    clears them, non-empty replaces them). An update naming an id outside
    the tree fails the batch.

Any failure at any phase rolls the whole transaction back. Callers receive
either a complete success or a complete failure; there is no partial
application. Failures are typed: NotFoundError identifies an update target
that does not exist in the tree, ValidationError enumerates person ids that
are not tree members, anything else is unexpected and logged with the tree
id.

Concurrent batches against the same tree are serialized by the database's
transaction isolation; the package holds no locks of its own.
*/
package sync
