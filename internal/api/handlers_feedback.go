// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"net/http"

	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/mailer"
	"github.com/stemmahq/stemma/internal/models"
)

// HandleFeedbackSubmit stores a feedback row and queues a copy for the
// operator. POST /api/v1/feedback. Anonymous submissions carry no user id
// in storage and no sender address in the mail.
func (h *Handler) HandleFeedbackSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req FeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Category == "" {
		req.Category = "general"
	}

	feedback := &models.Feedback{
		Category: req.Category,
		Message:  req.Message,
	}
	if !req.Anonymous {
		feedback.UserID = &userID
	}

	if err := h.db.CreateFeedback(r.Context(), feedback); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	// The operator copy is best effort. The row is committed; a failed
	// address lookup just degrades the mail to anonymous.
	var senderEmail string
	if !req.Anonymous {
		if user, err := h.db.GetUserByID(r.Context(), userID); err == nil {
			senderEmail = user.Email
		} else {
			logging.Warn().Err(err).Msg("Failed to resolve feedback sender")
		}
	}
	h.mail.Enqueue(mailer.NewFeedbackMessage(h.config.SMTP.OperatorEmail, req.Category, req.Message, senderEmail))

	respondSuccess(w, http.StatusAccepted, FeedbackAcceptedResponse{ID: feedback.ID})
}

// HandleWaitlistJoin records an address waiting for a registration slot.
// POST /api/v1/waitlist. Public and idempotent: joining twice looks the
// same as joining once, so the endpoint reveals nothing about membership.
func (h *Handler) HandleWaitlistJoin(w http.ResponseWriter, r *http.Request) {
	var req WaitlistJoinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := normalizeEmail(req.Email)

	if err := h.db.AddToWaitlist(r.Context(), email); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	h.mail.Enqueue(mailer.NewWaitlistJoinedMessage(h.config.SMTP.OperatorEmail, email))

	respondSuccess(w, http.StatusAccepted, MessageResponse{Message: "joined_waitlist"})
}
