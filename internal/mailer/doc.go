// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

/*
Package mailer delivers transactional email asynchronously.

Request handlers never talk SMTP. They render a Message with one of the
builders (verification, waitlist signup, feedback) and hand it to Tasks,
which publishes it on an in-process Watermill queue. The Worker service
subscribes to the queue and delivers through SMTPMailer, which wraps
net/smtp in a circuit breaker so a dead mail server stops consuming
connection timeouts.

Delivery failures are retried with backoff and then dropped with an error
log. Mail is fire-and-forget: no request ever fails because of it.
*/
package mailer
