// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

// Package testinfra provides container-backed infrastructure for integration
// tests.
//
// The package uses testcontainers-go to run the real services Stemma talks
// to, so integration suites exercise actual protocol behavior instead of
// mocks.
//
// # MailHog Container
//
// MailHogContainer runs a MailHog instance that accepts SMTP on one port and
// exposes captured mail over an HTTP API on another:
//
//	func TestVerificationMail(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//
//	    ctx := context.Background()
//	    mh, err := testinfra.NewMailHogContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, mh.Container)
//
//	    m := mailer.NewSMTPMailer(&config.SMTPConfig{
//	        Host: mh.Host,
//	        Port: mh.SMTPPort,
//	        From: "noreply@stemma.test",
//	    })
//
//	    // Send through m, then assert on mh.WaitForMessage(...).
//	}
//
// # Benefits Over Mocks
//
// Captured mail went through a real SMTP session: connection setup,
// envelope commands, and DATA framing are all validated, and multipart
// bodies arrive exactly as a mail client would see them.
//
// # CI Considerations
//
// These tests require Docker and, on first run, network access to pull
// images. They skip gracefully when Docker is unavailable and build only
// under the integration tag:
//
//	go test -tags integration ./...
package testinfra
