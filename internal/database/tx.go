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

	"github.com/stemmahq/stemma/internal/logging"
)

// Tx exposes the row operations that must share one transaction: everything
// a sync batch or a CRUD request touches. A Tx is only valid inside the
// WithTx callback that produced it.
type Tx struct {
	tx *sql.Tx
}

// WithTx begins a transaction, runs fn, and commits. Any error from fn or
// from the commit rolls the whole transaction back and is returned unchanged
// so callers can match on their own error types.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logging.Warn().Err(rbErr).Msg("Transaction rollback failed")
		}
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
