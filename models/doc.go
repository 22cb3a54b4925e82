// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: question, options, poll_type, requires_account
  - AddOptionRequest: label
  - UpdateQuestionRequest: question
  - SubmitVoteRequest: option_id or option_ids, fingerprint

# Response Types

Types for JSON responses:

  - CreatePollResponse: poll_id, share_url
  - AddOptionResponse: option
  - SubmitVoteResponse: options, stats, message
  - ErrorResponse: error, message

# Domain Types

Internal data structures:

  - Poll: poll metadata (question, type, owner, account requirement)
  - Option: voting option with its cached vote count
  - Vote: one immutable ledger row
  - Stats: ledger-derived aggregates (total votes, unique voters/devices)
  - Snapshot: read-only poll view for a specific viewer
  - Tally: refreshed options and stats after an accepted vote

# Constants

Poll types:

	TypeSingle   = "single"
	TypeMultiple = "multiple"
*/
package models
