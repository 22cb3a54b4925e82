// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines the HTTP routes using Go 1.22+ routing.

# Routes

	GET    /health                        health check
	POST   /polls                         create a poll
	GET    /polls/{id}                    viewer snapshot
	PATCH  /polls/{id}                    edit question (owner)
	POST   /polls/{id}/options            add option (owner)
	DELETE /polls/{id}/options/{optionID} soft-delete option (owner)
	POST   /polls/{id}/votes              cast or change a vote
	GET    /polls/{id}/live               server-sent events stream

All JSON endpoints run behind the logging and voter-cookie middleware.
The live stream skips both: it is long-lived and read-only.
*/
package router
