// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package database

import (
	"errors"
	"io"
	"strings"

	"github.com/stemmahq/stemma/internal/logging"
)

// ErrNotFound is returned when a row lookup matches nothing. Callers decide
// whether that maps to a 404, a silent skip, or something else.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a PRIMARY KEY or UNIQUE
// constraint, e.g. registering an email that already exists.
var ErrDuplicate = errors.New("duplicate record")

// IsDuplicateKey reports whether err is a DuckDB constraint violation for a
// primary key or unique index. The driver exposes these only as error text.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key") ||
		strings.Contains(msg, "violates primary key constraint") ||
		strings.Contains(msg, "violates unique constraint")
}

// closeWithLog closes a resource and logs any error. Use this for cleanup
// operations where errors should be acknowledged but not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error. Use this
// in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
