// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Poll type constants
const (
	TypeSingle   = "single"
	TypeMultiple = "multiple"
)

// Request types

type CreatePollRequest struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	PollType        string   `json:"poll_type"`
	RequiresAccount bool     `json:"requires_account"`
}

type AddOptionRequest struct {
	Label string `json:"label"`
}

type UpdateQuestionRequest struct {
	Question string `json:"question"`
}

// Either OptionID (single-choice) or OptionIDs (multiple-choice) is set.
type SubmitVoteRequest struct {
	OptionID    string   `json:"option_id,omitempty"`
	OptionIDs   []string `json:"option_ids,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// Response types

type CreatePollResponse struct {
	PollID   string `json:"poll_id"`
	ShareURL string `json:"share_url"`
}

type AddOptionResponse struct {
	Option Option `json:"option"`
}

type SubmitVoteResponse struct {
	Options []Option `json:"options"`
	Stats   Stats    `json:"stats"`
	Message string   `json:"message"`
}

// Domain types

type Poll struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	PollType        string    `json:"poll_type"`
	AllowMultiple   bool      `json:"allow_multiple"`
	OwnerKey        string    `json:"-"` // Never expose in JSON
	RequiresAccount bool      `json:"requires_account"`
	CreatedAt       time.Time `json:"created_at"`
}

type Option struct {
	ID        string `json:"id"`
	PollID    string `json:"poll_id"`
	Label     string `json:"label"`
	VoteCount int    `json:"vote_count"`
}

// Vote is one immutable ledger row. A vote change is modeled as
// delete-old + insert-new inside a single transaction, never an update.
type Vote struct {
	ID          string    `json:"id"`
	PollID      string    `json:"poll_id"`
	OptionID    string    `json:"option_id"`
	VoterKey    string    `json:"-"` // Never expose in JSON
	IPHash      string    `json:"-"` // Never expose in JSON
	Fingerprint string    `json:"-"` // Never expose in JSON
	UserAgent   string    `json:"-"` // Never expose in JSON
	CreatedAt   time.Time `json:"created_at"`
}

// Stats are always derivable from the vote ledger.
type Stats struct {
	TotalVotes    int  `json:"total_votes"`
	UniqueVoters  int  `json:"unique_voters"`
	UniqueDevices *int `json:"unique_devices,omitempty"`
}

type Snapshot struct {
	Poll           Poll     `json:"poll"`
	Options        []Option `json:"options"`
	HasVoted       bool     `json:"has_voted"`
	VotedOptionIDs []string `json:"voted_option_ids"`
	Stats          Stats    `json:"stats"`
}

// Tally is returned after an accepted vote and mirrors the
// vote-update event payload.
type Tally struct {
	Options []Option `json:"options"`
	Stats   Stats    `json:"stats"`
	Changed bool     `json:"-"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
