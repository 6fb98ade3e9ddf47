// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

/*
Package websocket fans out real-time notifications to a user's connected
sessions.

The Hub tracks connections keyed by user id. When a sync batch commits, the
reconciler calls NotifySyncCompleted and every device the user has open
receives a sync_completed message telling it to refresh its local copy of
the tree. Messages never cross user boundaries: a connection only ever sees
events for the account it authenticated as.

Each client connection runs two goroutines:

  - readPump: reads from the socket, answers application-level pings,
    enforces the read deadline via pong handlers
  - writePump: drains the client's send buffer onto the socket and keeps
    the connection alive with protocol pings

The Hub itself is a supervised service (Serve/String) and closes every
connection when its context is canceled. Delivery is best effort: a client
that cannot keep up with its send buffer is disconnected rather than
allowed to stall the hub, and notifications that arrive while the hub is
saturated are dropped with a log line. The durable record of a sync is the
HTTP response; the socket is a hint.

The HTTP upgrade endpoint lives in internal/api, which authenticates the
request and checks the Origin header before handing the connection to
NewClient.
*/
package websocket
