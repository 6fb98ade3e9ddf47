// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

/*
Package supervisor runs the long-lived services of the process under a
suture v4 supervision tree.

The tree has three layers so failures stay contained:

	RootSupervisor ("stemma")
	├── DataSupervisor ("data-layer")
	│   └── token store GC (badger value-log compaction)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── mail worker (watermill consumer)
	│   └── websocket hub
	└── APISupervisor ("api-layer")
	    └── HTTP server

A crash in mail delivery restarts the worker without touching open HTTP
connections; a websocket hub restart does not interrupt token GC. Crashed
services restart with exponential backoff, and when a layer exceeds its
failure threshold suture backs the whole layer off before trying again.

Services implement suture.Service directly (Serve(ctx) error plus String()
for log lines). The HTTP server gets a small adapter, HTTPServerService,
which translates ListenAndServe/Shutdown into the context-driven Serve
shape.

Supervision events are logged through sutureslog, which feeds the process
zerolog logger via logging.NewSlogLogger.

Typical wiring from main:

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(gc)
	tree.AddMessagingService(worker)
	tree.AddMessagingService(hub)
	tree.AddAPIService(supervisor.NewHTTPServerService(srv, 10*time.Second))
	errCh := tree.ServeBackground(ctx)
*/
package supervisor
