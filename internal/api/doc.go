// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

// Package api implements the HTTP surface of the Stemma server.
//
// Every response is a models.APIResponse envelope. Handlers never see
// plaintext journal content: encrypted_data blobs pass through storage and
// back out untouched, and the server stores only the structural facts it
// needs to enforce ownership and referential integrity.
//
// The package is organized around a single Handler that owns the database,
// token machinery, sync reconciler, capacity gate, mail task queue, and
// websocket hub. Router (router.go) wires the Handler into a chi mux with
// per-group rate limits; tree-scoped routes resolve ownership inside the
// same transaction as the work they do, so a tree owned by someone else is
// indistinguishable from a tree that does not exist.
package api
