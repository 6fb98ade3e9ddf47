// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package mailer

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/metrics"
)

// TopicOutbound is the queue topic for rendered outbound mail.
const TopicOutbound = "mail.outbound"

// NewPubSub creates the in-process queue shared by Tasks and Worker.
func NewPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
}

// Tasks publishes rendered messages for asynchronous delivery.
type Tasks struct {
	pub message.Publisher
}

// NewTasks creates a task publisher on the given queue.
func NewTasks(pub message.Publisher) *Tasks {
	return &Tasks{pub: pub}
}

// Enqueue schedules a message for delivery. Failures are logged, never
// returned: mail must not fail the request that triggered it.
func (t *Tasks) Enqueue(m *Message) {
	data, err := json.Marshal(m)
	if err != nil {
		logging.Error().Err(err).Str("kind", m.Kind).Msg("Failed to marshal mail task")
		return
	}

	if err := t.pub.Publish(TopicOutbound, message.NewMessage(watermill.NewUUID(), data)); err != nil {
		logging.Error().Err(err).Str("kind", m.Kind).Msg("Failed to enqueue mail task")
		return
	}

	metrics.MailQueueDepth.Inc()
}
