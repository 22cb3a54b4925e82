// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the livetally API.

# Handler Types

Each handler is a struct with engine and config dependencies:

  - PollHandler: poll lifecycle and option management
  - VotingHandler: vote submission and changes

Handlers are created via constructor functions:

	pollHandler := handlers.NewPollHandler(eng, cfg)

# Poll Flow

	POST   /polls                        → CreatePoll
	GET    /polls/{id}                   → GetPoll (viewer snapshot)
	PATCH  /polls/{id}                   → UpdateQuestion (owner only)
	POST   /polls/{id}/options           → AddOption (owner only)
	DELETE /polls/{id}/options/{optionID} → RemoveOption (owner only, soft)

# Voting Flow

	POST /polls/{id}/votes → SubmitVote

One endpoint covers both casting and changing: the engine replaces any
prior vote under the same voter key inside one transaction. The request
carries the fingerprint when the active policy requires one.

# Errors

Domain errors map onto statuses via writeDomainError: invalid input and
missing fingerprint are 400, missing account session 401, already-voted
and ownership violations 403, unknown polls/options 404, rate limiting
429. Storage faults are logged and surfaced as an opaque 500.
*/
package handlers
