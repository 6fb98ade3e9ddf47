// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package mailer

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Mail kinds, used for metrics and logging.
const (
	KindVerification   = "verification"
	KindWaitlistJoined = "waitlist_joined"
	KindFeedback       = "feedback"
)

// Message is a single outbound email, rendered and ready to deliver.
type Message struct {
	Kind     string `json:"kind"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyText string `json:"body_text"`
	BodyHTML string `json:"body_html,omitempty"`
}

// NewVerificationMessage renders the email-verification mail sent to a
// freshly registered user. The link expires with the stored token.
func NewVerificationMessage(baseURL, to, token string) *Message {
	verifyURL := fmt.Sprintf("%s/verify?token=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(token))

	text := fmt.Sprintf(
		"Stemma - Verify your email\n\n"+
			"Click the link below to verify your email address:\n\n"+
			"%s\n\n"+
			"This link expires in 24 hours. "+
			"If you did not create an account, you can ignore this email.",
		verifyURL,
	)

	html := fmt.Sprintf(`<html>
<body style="font-family: 'Source Sans 3', sans-serif; color: #1a2e1f; max-width: 480px; margin: 0 auto; padding: 24px;">
  <h2 style="font-family: Georgia, serif; color: #1a2e1f;">Stemma</h2>
  <p>Verify your email address to get started.</p>
  <p>
    <a href="%s"
       style="display: inline-block; padding: 10px 24px; background: #2d8a5e; color: #fff; text-decoration: none; border-radius: 6px;">
      Verify email
    </a>
  </p>
  <p style="color: #5a6e5f; font-size: 14px;">
    Or copy this link: %s
  </p>
  <p style="color: #5a6e5f; font-size: 14px;">
    This link expires in 24 hours. If you did not create an account, you can ignore this email.
  </p>
</body>
</html>`, verifyURL, verifyURL)

	return &Message{
		Kind:     KindVerification,
		To:       to,
		Subject:  "Verify your email - Stemma",
		BodyText: text,
		BodyHTML: html,
	}
}

// NewWaitlistJoinedMessage renders the operator notification for a new
// waitlist signup.
func NewWaitlistJoinedMessage(operatorEmail, joinedEmail string) *Message {
	timestamp := time.Now().UTC().Format("2006-01-02 15:04 UTC")

	text := fmt.Sprintf(
		"A new user joined the waitlist.\n\nEmail: %s\nTime: %s\n",
		joinedEmail, timestamp,
	)

	return &Message{
		Kind:     KindWaitlistJoined,
		To:       operatorEmail,
		Subject:  "[Stemma] New waitlist signup",
		BodyText: text,
	}
}

// NewFeedbackMessage renders the operator notification for submitted
// feedback. userEmail may be empty for anonymous submissions.
func NewFeedbackMessage(operatorEmail, category, body, userEmail string) *Message {
	sender := userEmail
	if sender == "" {
		sender = "Anonymous"
	}
	timestamp := time.Now().UTC().Format("2006-01-02 15:04 UTC")

	text := fmt.Sprintf(
		"Category: %s\nFrom: %s\nTime: %s\n\n%s",
		category, sender, timestamp, body,
	)

	return &Message{
		Kind:     KindFeedback,
		To:       operatorEmail,
		Subject:  fmt.Sprintf("[Feedback] %s from %s", capitalize(category), sender),
		BodyText: text,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
