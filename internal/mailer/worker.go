// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/metrics"
)

// WorkerConfig holds delivery retry configuration.
type WorkerConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64
}

// DefaultWorkerConfig returns production defaults for the mail worker.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     30 * time.Second,
		RetryMultiplier:      2.0,
	}
}

// Worker consumes the outbound mail queue and delivers messages. It
// implements suture.Service and runs under the application supervisor.
type Worker struct {
	router *message.Router
	mailer Mailer
}

// NewWorker creates a mail delivery worker on the given queue. Handler
// failures are retried with backoff and then dropped with an error log,
// so one undeliverable message never blocks the queue.
func NewWorker(cfg WorkerConfig, sub message.Subscriber, m Mailer) (*Worker, error) {
	logger := watermill.NewStdLogger(false, false)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail router: %w", err)
	}

	w := &Worker{router: router, mailer: m}

	// Outer to inner: drop exhausted messages, recover panics, retry.
	router.AddMiddleware(dropExhausted)
	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}.Middleware)

	router.AddConsumerHandler("mail-delivery", TopicOutbound, sub, w.handle)

	return w, nil
}

func (w *Worker) handle(msg *message.Message) error {
	var m Message
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		logging.Error().Err(err).Msg("Dropping malformed mail task")
		return nil
	}

	if err := w.mailer.Send(msg.Context(), &m); err != nil {
		return err
	}

	logging.Info().Str("kind", m.Kind).Msg("Mail delivered")
	return nil
}

// dropExhausted acks messages that still fail after all retries so the
// queue never backs up behind an undeliverable mail. It is the
// outermost middleware, so it runs once per message regardless of
// retries, which makes it the right place to settle the depth gauge.
func dropExhausted(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		defer metrics.MailQueueDepth.Dec()

		out, err := h(msg)
		if err != nil {
			logging.Error().Err(err).Msg("Dropping mail task after retries")
			return nil, nil
		}
		return out, nil
	}
}

// Serve runs the delivery loop until the context is canceled.
func (w *Worker) Serve(ctx context.Context) error {
	if err := w.router.Run(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (w *Worker) String() string {
	return "mail-worker"
}
