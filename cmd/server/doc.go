// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

/*
Package main is the entry point for the Stemma server.

Stemma is a self-hostable backend for end-to-end encrypted family
history journaling. Clients keep the plaintext; the server stores
ciphertext blobs plus the bare relational skeleton it needs to
enforce ownership and reconcile batched edits from a user's devices.

# Application Architecture

The server implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("stemma")
	├── DataSupervisor ("data-layer")
	│   └── Token store GC (BadgerDB value-log compaction)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Mail worker (Watermill queue consumer)
	│   └── WebSocket hub (sync completion fanout)
	└── APISupervisor ("api-layer")
	    └── HTTP server (Chi router)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB with the versioned migration set
 4. Token store: BadgerDB holding refresh-token revocations and
    email verification tokens
 5. Mail pipeline: Watermill gochannel queue with an SMTP delivery
    worker (discard mailer when SMTP is disabled)
 6. Capacity gate: cached verified-user count for waitlist gating
 7. WebSocket hub and sync reconciler
 8. Supervisor tree: Suture v4 process supervision
 9. HTTP server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_HOST=0.0.0.0
	HTTP_PORT=8080
	BASE_URL=https://stemma.example.com   # Used in verification links
	ENVIRONMENT=production                # production or development
	LOG_LEVEL=info                        # trace, debug, info, warn, error
	LOG_FORMAT=json                       # json or console

	# Storage
	DUCKDB_PATH=data/stemma.db
	TOKEN_STORE_PATH=data/tokens

	# Security
	JWT_SECRET=<32+ chars>                # Required
	ACCESS_TOKEN_TTL=30m
	REFRESH_TOKEN_TTL=168h
	CORS_ORIGINS=https://app.example.com  # Comma-separated; * rejected in production

	# Mail (optional; accounts verify immediately when disabled)
	SMTP_ENABLED=true
	SMTP_HOST=smtp.example.com
	SMTP_PORT=587
	SMTP_FROM=noreply@example.com
	OPERATOR_EMAIL=admin@example.com      # Receives waitlist/feedback notices

	# Capacity
	MAX_ACTIVE_USERS=0                    # 0 disables the registration cap
	ENABLE_WAITLIST=false

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Waits for in-flight requests (10s timeout)
 3. Closes WebSocket sessions and stops the mail worker
 4. Checkpoints and closes the database and token store
 5. Reports any services that failed to stop

In-flight sync transactions roll back when their request context is
canceled; no partial batch survives a shutdown.

# Usage Examples

Development:

	export JWT_SECRET=$(openssl rand -base64 32)
	export ENVIRONMENT=development LOG_FORMAT=console
	go run ./cmd/server

Production:

	export JWT_SECRET=$(openssl rand -base64 32)
	export BASE_URL=https://stemma.example.com
	export CORS_ORIGINS=https://app.example.com
	export SMTP_ENABLED=true SMTP_HOST=smtp.example.com SMTP_FROM=noreply@example.com
	./stemma

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/sync: Batch sync reconciliation
*/
package main
