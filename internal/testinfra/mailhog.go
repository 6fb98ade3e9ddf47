// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMailHogImage is the MailHog image used for mail capture.
	DefaultMailHogImage = "mailhog/mailhog:v1.0.1"

	mailhogSMTPPort = "1025"
	mailhogHTTPPort = "8025"
)

// MailHogContainer is a running MailHog instance. It accepts SMTP on
// Host:SMTPPort and serves captured messages over the HTTP API at APIURL.
type MailHogContainer struct {
	testcontainers.Container
	Host     string
	SMTPPort int
	APIURL   string
}

// MailHogOption configures the MailHog container.
type MailHogOption func(*mailhogConfig)

type mailhogConfig struct {
	image        string
	startTimeout time.Duration
}

// WithMailHogImage sets a custom MailHog Docker image.
func WithMailHogImage(image string) MailHogOption {
	return func(c *mailhogConfig) {
		c.image = image
	}
}

// WithMailHogStartTimeout sets the deadline for container startup.
func WithMailHogStartTimeout(timeout time.Duration) MailHogOption {
	return func(c *mailhogConfig) {
		c.startTimeout = timeout
	}
}

// NewMailHogContainer creates and starts a MailHog container for testing
// mail delivery.
//
// Example:
//
//	ctx := context.Background()
//	mh, err := NewMailHogContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer mh.Terminate(ctx)
//
//	// Point the mailer at mh.Host:mh.SMTPPort, send, then read the
//	// capture back through mh.WaitForMessage.
func NewMailHogContainer(ctx context.Context, opts ...MailHogOption) (*MailHogContainer, error) {
	cfg := &mailhogConfig{
		image:        DefaultMailHogImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{mailhogSMTPPort + "/tcp", mailhogHTTPPort + "/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(mailhogSMTPPort+"/tcp"),
			wait.ForHTTP("/api/v2/messages").WithPort(mailhogHTTPPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create mailhog container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	smtpPort, err := container.MappedPort(ctx, mailhogSMTPPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get smtp port: %w", err)
	}

	httpPort, err := container.MappedPort(ctx, mailhogHTTPPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get http port: %w", err)
	}

	return &MailHogContainer{
		Container: container,
		Host:      host,
		SMTPPort:  smtpPort.Int(),
		APIURL:    fmt.Sprintf("http://%s:%s", host, httpPort.Port()),
	}, nil
}

// MailHogAddress is one SMTP path in a captured message.
type MailHogAddress struct {
	Mailbox string `json:"Mailbox"`
	Domain  string `json:"Domain"`
}

// String returns the mailbox@domain form.
func (a MailHogAddress) String() string {
	return a.Mailbox + "@" + a.Domain
}

// MailHogMessage is one captured mail as reported by the MailHog API.
type MailHogMessage struct {
	ID      string           `json:"ID"`
	To      []MailHogAddress `json:"To"`
	Content struct {
		Headers map[string][]string `json:"Headers"`
		Body    string              `json:"Body"`
	} `json:"Content"`
}

// Subject returns the message subject header, or "" when absent.
func (m *MailHogMessage) Subject() string {
	if v := m.Content.Headers["Subject"]; len(v) > 0 {
		return v[0]
	}
	return ""
}

type mailhogPage struct {
	Total int              `json:"total"`
	Items []MailHogMessage `json:"items"`
}

// Messages fetches all captured messages.
func (c *MailHogContainer) Messages(ctx context.Context) ([]MailHogMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+"/api/v2/messages", nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mailhog API returned %d", resp.StatusCode)
	}

	var page mailhogPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	return page.Items, nil
}

// WaitForMessage polls the capture API until a message addressed to the
// given recipient arrives or the timeout passes.
func (c *MailHogContainer) WaitForMessage(ctx context.Context, to string, timeout time.Duration) (*MailHogMessage, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		msgs, err := c.Messages(ctx)
		if err == nil {
			for i := range msgs {
				for _, rcpt := range msgs[i].To {
					if rcpt.String() == to {
						return &msgs[i], nil
					}
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("no message for %s within %s", to, timeout)
}

// Clear deletes all captured messages, isolating test cases that share
// one container.
func (c *MailHogContainer) Clear(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.APIURL+"/api/v1/messages", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailhog API returned %d", resp.StatusCode)
	}

	return nil
}
