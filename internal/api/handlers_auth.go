// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/auth"
	"github.com/stemmahq/stemma/internal/capacity"
	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/mailer"
	"github.com/stemmahq/stemma/internal/metrics"
	"github.com/stemmahq/stemma/internal/models"
)

// verificationTTL bounds how long a verification link stays redeemable.
const verificationTTL = 24 * time.Hour

// verificationRequired reports whether new accounts must confirm their
// email before logging in. Tied to SMTP: without outbound mail the link
// could never arrive, so accounts activate immediately instead.
func (h *Handler) verificationRequired() bool {
	return h.config.SMTP.Enabled
}

// normalizeEmail canonicalizes an address for storage and lookup so the
// same mailbox cannot register twice with different casing.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HandleRegister creates an account. POST /api/v1/auth/register.
//
// When the instance is at capacity the request is refused up front, with
// the error telling the client whether a waitlist is open. When email
// verification is required the response carries no tokens; the account
// stays locked until the mailed link is followed.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.gate.CheckRegistrationOpen(r.Context()); err != nil {
		var atCap *capacity.ErrAtCapacity
		if errors.As(err, &atCap) {
			respondError(w, http.StatusForbidden, "CAPACITY_REACHED", atCap.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	user := &models.User{
		Email:          normalizeEmail(req.Email),
		PasswordHash:   hash,
		EncryptionSalt: req.EncryptionSalt,
		EmailVerified:  !h.verificationRequired(),
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		if database.IsDuplicateKey(err) {
			metrics.RecordAuthAttempt("register", false)
			respondError(w, http.StatusConflict, "CONFLICT", "Email already registered", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}
	metrics.RecordAuthAttempt("register", true)

	// A registered address no longer needs its waitlist spot.
	if _, err := h.db.RemoveFromWaitlist(r.Context(), user.Email); err != nil {
		logging.Warn().Err(err).Msg("Failed to drop registered email from waitlist")
	}

	if h.verificationRequired() {
		h.sendVerification(r, user.ID, user.Email)
		respondSuccess(w, http.StatusCreated, MessageResponse{Message: "verification_email_sent"})
		return
	}

	h.gate.Invalidate()
	h.respondTokens(w, http.StatusCreated, user.ID, user.IsAdmin, user.EncryptionSalt)
}

// sendVerification stores a single-use token and queues the email. Mail
// delivery is fire-and-forget; a failure here must not fail the
// registration, so it is only logged.
func (h *Handler) sendVerification(r *http.Request, userID uuid.UUID, email string) {
	token := uuid.NewString()
	if err := h.tokens.PutVerification(r.Context(), token, userID, verificationTTL); err != nil {
		logging.Error().Err(err).Msg("Failed to store verification token")
		return
	}
	h.mail.Enqueue(mailer.NewVerificationMessage(h.config.Server.BaseURL, email, token))
}

// respondTokens issues a fresh access/refresh pair.
func (h *Handler) respondTokens(w http.ResponseWriter, status int, userID uuid.UUID, isAdmin bool, salt string) {
	access, err := h.jwtManager.GenerateAccessToken(userID, isAdmin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}
	refresh, err := h.jwtManager.GenerateRefreshToken(userID, isAdmin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	respondSuccess(w, status, TokenResponse{
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenType:      "bearer",
		EncryptionSalt: salt,
	})
}

// HandleLogin authenticates a user. POST /api/v1/auth/login.
//
// Unknown email and wrong password produce byte-identical responses so the
// endpoint cannot be used to probe which addresses have accounts.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.loginRejected(w)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	if !h.passwords.Compare(user.PasswordHash, req.Password) {
		h.loginRejected(w)
		return
	}

	if h.verificationRequired() && !user.EmailVerified {
		metrics.RecordAuthAttempt("login", false)
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "Email not verified", nil)
		return
	}

	metrics.RecordAuthAttempt("login", true)
	h.respondTokens(w, http.StatusOK, user.ID, user.IsAdmin, user.EncryptionSalt)
}

func (h *Handler) loginRejected(w http.ResponseWriter) {
	metrics.RecordAuthAttempt("login", false)
	respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid email or password", nil)
}

// HandleRefresh trades a refresh token for a new access token. POST
// /api/v1/auth/refresh. The refresh token itself is echoed back unchanged;
// it stays valid until expiry or logout.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != auth.TokenTypeRefresh {
		h.refreshRejected(w)
		return
	}

	revoked, err := h.tokens.IsRefreshRevoked(r.Context(), claims.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}
	if revoked {
		h.refreshRejected(w)
		return
	}

	userID, err := claims.UserID()
	if err != nil {
		h.refreshRejected(w)
		return
	}

	access, err := h.jwtManager.GenerateAccessToken(userID, claims.IsAdmin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	metrics.RecordAuthAttempt("refresh", true)
	respondSuccess(w, http.StatusOK, TokenResponse{
		AccessToken:  access,
		RefreshToken: req.RefreshToken,
		TokenType:    "bearer",
	})
}

func (h *Handler) refreshRejected(w http.ResponseWriter) {
	metrics.RecordAuthAttempt("refresh", false)
	respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid or expired refresh token", nil)
}

// HandleVerify redeems an emailed verification token. GET
// /api/v1/auth/verify?token=...
//
// Tokens are single-use: the store deletes on read, so a replayed link
// reports invalid even when the account is already verified.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing verification token", nil)
		return
	}

	userID, err := h.tokens.ConsumeVerification(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrVerificationNotFound) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid or expired verification token", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	if err := h.db.MarkEmailVerified(r.Context(), userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Account deleted after the link was issued.
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid or expired verification token", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	h.gate.Invalidate()
	respondSuccess(w, http.StatusOK, MessageResponse{Message: "email_verified"})
}

// HandleMe returns the caller's profile. GET /api/v1/auth/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.db.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Valid token for an account that no longer exists.
			respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	respondSuccess(w, http.StatusOK, user.Public())
}

// HandleLogout revokes the caller's refresh token. POST
// /api/v1/auth/logout. The access token stays valid until expiry; only the
// long-lived credential is invalidated.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req LogoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != auth.TokenTypeRefresh {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid refresh token", nil)
		return
	}

	// Only the token's own subject may revoke it.
	tokenUserID, err := claims.UserID()
	if err != nil || tokenUserID != userID {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid refresh token", nil)
		return
	}

	ttl := h.config.Security.RefreshTokenTTL
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 {
		if err := h.tokens.RevokeRefresh(r.Context(), claims.ID, ttl); err != nil {
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
			return
		}
	}

	respondSuccess(w, http.StatusOK, MessageResponse{Message: "logged_out"})
}
