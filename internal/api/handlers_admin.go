// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"net/http"

	"github.com/stemmahq/stemma/internal/middleware"
	"github.com/stemmahq/stemma/internal/models"
)

// HandleAdminStats reports instance occupancy. GET /api/v1/admin/stats.
// The verified-user number comes from the capacity gate's cache, so this
// endpoint shows the same count the registration gate enforces.
func (h *Handler) HandleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gate.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	totalUsers, err := h.db.CountUsers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}
	totalTrees, err := h.db.CountTrees(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}
	waitlistCount, err := h.db.CountWaitlist(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	resp := AdminStatsResponse{
		TotalUsers:      totalUsers,
		VerifiedUsers:   stats.ActiveUsers,
		TotalTrees:      totalTrees,
		WaitlistCount:   waitlistCount,
		MaxActiveUsers:  stats.MaxActiveUsers,
		WaitlistEnabled: stats.WaitlistEnabled,
	}
	if stats.MaxActiveUsers > 0 {
		remaining := int64(stats.MaxActiveUsers) - stats.ActiveUsers
		if remaining < 0 {
			remaining = 0
		}
		resp.CapacityRemaining = &remaining
	}

	respondSuccess(w, http.StatusOK, resp)
}

// HandleAdminPerformance reports per-endpoint latency aggregates. GET
// /api/v1/admin/performance.
func (h *Handler) HandleAdminPerformance(w http.ResponseWriter, r *http.Request) {
	stats := []middleware.EndpointStats{}
	if h.perf != nil {
		stats = h.perf.GetStats()
	}
	respondSuccess(w, http.StatusOK, stats)
}

// HandleAdminWaitlist lists waiting addresses, oldest first. GET
// /api/v1/admin/waitlist.
func (h *Handler) HandleAdminWaitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.db.ListWaitlist(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	if entries == nil {
		entries = []models.WaitlistEntry{}
	}
	respondSuccess(w, http.StatusOK, entries)
}

// HandleAdminWaitlistRemove drops one address from the waitlist. DELETE
// /api/v1/admin/waitlist/{email}.
func (h *Handler) HandleAdminWaitlistRemove(w http.ResponseWriter, r *http.Request) {
	email := normalizeEmail(r.PathValue("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid email", nil)
		return
	}

	removed, err := h.db.RemoveFromWaitlist(r.Context(), email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Waitlist entry not found", nil)
		return
	}

	respondNoContent(w)
}
