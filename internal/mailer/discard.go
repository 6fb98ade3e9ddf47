// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package mailer

import (
	"context"

	"github.com/stemmahq/stemma/internal/logging"
)

// DiscardMailer accepts every message and delivers none. It stands in
// for the SMTP mailer when mail is disabled so the outbound queue still
// drains and the queue depth gauge stays accurate.
type DiscardMailer struct{}

// Send drops the message.
func (DiscardMailer) Send(_ context.Context, msg *Message) error {
	logging.Debug().
		Str("kind", msg.Kind).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Mail delivery disabled, dropping message")
	return nil
}
