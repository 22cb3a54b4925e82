// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package sse fans committed poll changes out to live viewers over
server-sent events.

Clients join a per-poll topic via GET /polls/{id}/live. The broker pushes
two event kinds:

	vote-update    {options, stats}
	options-update {options}

Events are published only after the originating transaction commits.
Delivery is best-effort: a slow client is skipped after a short patience
interval and a disconnected client misses intermediate updates; both
reconcile by re-fetching the poll snapshot. There is no replay or
backlog.
*/
package sse
