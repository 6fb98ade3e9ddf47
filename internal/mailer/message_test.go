// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package mailer

import (
	"strings"
	"testing"
)

func TestNewVerificationMessage(t *testing.T) {
	msg := NewVerificationMessage("https://stemma.example/", "user@example.com", "abc123")

	if msg.Kind != KindVerification {
		t.Errorf("Kind = %q, want %q", msg.Kind, KindVerification)
	}
	if msg.To != "user@example.com" {
		t.Errorf("To = %q, want user@example.com", msg.To)
	}
	if msg.Subject != "Verify your email - Stemma" {
		t.Errorf("Subject = %q", msg.Subject)
	}

	wantURL := "https://stemma.example/verify?token=abc123"
	if !strings.Contains(msg.BodyText, wantURL) {
		t.Errorf("text body missing verify URL %q:\n%s", wantURL, msg.BodyText)
	}
	if !strings.Contains(msg.BodyHTML, wantURL) {
		t.Error("html body missing verify URL")
	}
	if strings.Contains(msg.BodyText, "example//verify") {
		t.Error("trailing base URL slash should be trimmed")
	}
}

func TestNewVerificationMessageEscapesToken(t *testing.T) {
	msg := NewVerificationMessage("https://stemma.example", "user@example.com", "a b+c")

	if !strings.Contains(msg.BodyText, "token=a+b%2Bc") {
		t.Errorf("token not query-escaped:\n%s", msg.BodyText)
	}
}

func TestNewWaitlistJoinedMessage(t *testing.T) {
	msg := NewWaitlistJoinedMessage("ops@example.com", "new@example.com")

	if msg.Kind != KindWaitlistJoined {
		t.Errorf("Kind = %q, want %q", msg.Kind, KindWaitlistJoined)
	}
	if msg.To != "ops@example.com" {
		t.Errorf("To = %q, want operator address", msg.To)
	}
	if msg.Subject != "[Stemma] New waitlist signup" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.BodyText, "new@example.com") {
		t.Error("body should name the joined address")
	}
	if msg.BodyHTML != "" {
		t.Error("operator notifications are text-only")
	}
}

func TestNewFeedbackMessage(t *testing.T) {
	tests := []struct {
		name        string
		category    string
		userEmail   string
		wantSubject string
	}{
		{"named sender", "bug", "user@example.com", "[Feedback] Bug from user@example.com"},
		{"anonymous sender", "PRAISE", "", "[Feedback] Praise from Anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewFeedbackMessage("ops@example.com", tt.category, "the message body", tt.userEmail)

			if msg.Kind != KindFeedback {
				t.Errorf("Kind = %q, want %q", msg.Kind, KindFeedback)
			}
			if msg.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", msg.Subject, tt.wantSubject)
			}
			if !strings.Contains(msg.BodyText, "the message body") {
				t.Error("body text missing feedback message")
			}
			if !strings.Contains(msg.BodyText, "Category: "+tt.category) {
				t.Error("body text missing category line")
			}
		})
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"bug", "Bug"},
		{"PRAISE", "Praise"},
		{"x", "X"},
	}

	for _, tt := range tests {
		if got := capitalize(tt.in); got != tt.want {
			t.Errorf("capitalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
