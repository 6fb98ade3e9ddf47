// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/logging"
)

// Key prefixes for namespacing in BadgerDB.
const (
	revokedKeyPrefix = "revoked:"
	verifyKeyPrefix  = "verify:"
)

// ErrVerificationNotFound is returned when a verification token is
// unknown, already used, or expired.
var ErrVerificationNotFound = errors.New("verification token not found")

// TokenStore persists refresh-token revocations and single-use email
// verification tokens in BadgerDB. Entries carry TTLs so expired state
// disappears without scans.
type TokenStore struct {
	db *badger.DB
}

// OpenTokenStore opens a BadgerDB-backed token store at the given path.
func OpenTokenStore(path string) (*TokenStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	// Token entries are tiny; keep value log files small.
	opts.ValueLogFileSize = 16 << 20
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	return &TokenStore{db: db}, nil
}

// NewTokenStoreFromDB creates a token store from an existing BadgerDB
// connection.
func NewTokenStoreFromDB(db *badger.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Close closes the underlying BadgerDB.
func (s *TokenStore) Close() error {
	return s.db.Close()
}

// RevokeRefresh marks a refresh token id as revoked. The TTL should
// cover the token's remaining lifetime; after that the token is expired
// anyway and the entry can lapse.
func (s *TokenStore) RevokeRefresh(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("token id cannot be empty")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(revokedKeyPrefix+jti), []byte{1})
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// IsRefreshRevoked reports whether a refresh token id has been revoked.
func (s *TokenStore) IsRefreshRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(revokedKeyPrefix + jti))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read revocation: %w", err)
		}
		revoked = true
		return nil
	})

	return revoked, err
}

// PutVerification stores an email verification token for the user.
func (s *TokenStore) PutVerification(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	if token == "" {
		return errors.New("verification token cannot be empty")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(verifyKeyPrefix+token), []byte(userID.String()))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// ConsumeVerification resolves a verification token to its user id and
// deletes it. A token verifies exactly once; replays return
// ErrVerificationNotFound.
func (s *TokenStore) ConsumeVerification(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID

	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(verifyKeyPrefix + token)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrVerificationNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read verification token: %w", err)
		}

		err = item.Value(func(val []byte) error {
			parsed, parseErr := uuid.Parse(string(val))
			if parseErr != nil {
				return fmt.Errorf("failed to parse stored user id: %w", parseErr)
			}
			userID = parsed
			return nil
		})
		if err != nil {
			return err
		}

		return txn.Delete(key)
	})
	if err != nil {
		return uuid.Nil, err
	}

	return userID, nil
}

// RunGC runs one round of BadgerDB value log garbage collection.
func (s *TokenStore) RunGC() error {
	return s.db.RunValueLogGC(0.5)
}

// TokenStoreGC periodically reclaims BadgerDB value log space. It
// implements suture.Service and runs under the application supervisor.
type TokenStoreGC struct {
	store    *TokenStore
	interval time.Duration
}

// NewTokenStoreGC creates a GC service for the token store.
func NewTokenStoreGC(store *TokenStore, interval time.Duration) *TokenStoreGC {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &TokenStoreGC{store: store, interval: interval}
}

// Serve runs the GC loop until the context is canceled.
func (g *TokenStoreGC) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			if err := g.store.RunGC(); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("Token store GC failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (g *TokenStoreGC) String() string {
	return "token-store-gc"
}
