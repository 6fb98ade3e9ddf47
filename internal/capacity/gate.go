// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

// Package capacity gates new registrations against the configured
// active-user cap.
package capacity

import (
	"context"
	"fmt"
	"time"

	"github.com/stemmahq/stemma/internal/cache"
	"github.com/stemmahq/stemma/internal/config"
	"github.com/stemmahq/stemma/internal/database"
)

const (
	userCountKey = "capacity:verified_users"
	countTTL     = 60 * time.Second
)

// ErrAtCapacity reports that registration is closed because the
// instance reached its active-user cap.
type ErrAtCapacity struct {
	WaitlistEnabled bool
}

func (e *ErrAtCapacity) Error() string {
	if e.WaitlistEnabled {
		return "registration is at capacity; the waitlist is open"
	}
	return "registration is at capacity"
}

// Gate decides whether new registrations are currently allowed. Only
// verified users count against the cap. Counts are cached for 60
// seconds, so admission near the cap is approximate by one cache
// window.
type Gate struct {
	db     *database.DB
	cfg    *config.CapacityConfig
	counts *cache.Cache
}

// New creates a capacity gate.
func New(db *database.DB, cfg *config.CapacityConfig) *Gate {
	return &Gate{
		db:     db,
		cfg:    cfg,
		counts: cache.New(countTTL),
	}
}

// CheckRegistrationOpen returns nil when a new user may register and an
// *ErrAtCapacity when the cap is reached. MaxActiveUsers <= 0 means
// unlimited.
func (g *Gate) CheckRegistrationOpen(ctx context.Context) error {
	if g.cfg.MaxActiveUsers <= 0 {
		return nil
	}

	count, err := g.activeUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active users: %w", err)
	}

	if count >= int64(g.cfg.MaxActiveUsers) {
		return &ErrAtCapacity{WaitlistEnabled: g.cfg.WaitlistEnabled}
	}
	return nil
}

// Invalidate drops the cached count so the next check reads the
// database. Call after committing a verification or registration.
func (g *Gate) Invalidate() {
	g.counts.Delete(userCountKey)
}

// Stop releases the gate's cache resources.
func (g *Gate) Stop() {
	g.counts.Stop()
}

// Stats reports current capacity for the admin endpoint.
type Stats struct {
	ActiveUsers     int64 `json:"active_users"`
	MaxActiveUsers  int   `json:"max_active_users"`
	WaitlistEnabled bool  `json:"waitlist_enabled"`
}

// Stats returns the live capacity numbers.
func (g *Gate) Stats(ctx context.Context) (*Stats, error) {
	count, err := g.activeUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}

	return &Stats{
		ActiveUsers:     count,
		MaxActiveUsers:  g.cfg.MaxActiveUsers,
		WaitlistEnabled: g.cfg.WaitlistEnabled,
	}, nil
}

func (g *Gate) activeUsers(ctx context.Context) (int64, error) {
	if v, ok := g.counts.Get(userCountKey); ok {
		return v.(int64), nil
	}

	count, err := g.db.CountVerifiedUsers(ctx)
	if err != nil {
		return 0, err
	}

	g.counts.Set(userCountKey, count)
	return count, nil
}
