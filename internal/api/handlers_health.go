// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/stemmahq/stemma/internal/logging"
)

// healthPingTimeout bounds the database round trip so a wedged connection
// cannot stall the probe.
const healthPingTimeout = 2 * time.Second

// HandleHealth reports liveness and the database round trip. GET /health.
// Load balancers key off the status code: 200 healthy, 503 when the
// database does not answer.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	uptime := int64(time.Since(h.startTime).Seconds())

	if err := h.db.Ping(ctx); err != nil {
		logging.Error().Err(err).Msg("Health check database ping failed")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database unreachable", err)
		return
	}

	respondSuccess(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Database:      "ok",
		UptimeSeconds: uptime,
	})
}
