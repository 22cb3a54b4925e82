// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "github.com/livetally/livetally/models"

// Publisher fans accepted changes out to live viewers. The engine calls it
// strictly after a transaction commits, never before, so subscribers can
// never observe a result that could still be rolled back. Delivery is
// best-effort; disconnected clients reconcile via Snapshot.
type Publisher interface {
	ResultsChanged(pollID string, options []models.Option, stats models.Stats)
	OptionsChanged(pollID string, options []models.Option)
	QuestionChanged(pollID, question string)
}

// NopPublisher drops all events. Used when no fan-out channel is wired,
// and by tests that only care about ledger state.
type NopPublisher struct{}

func (NopPublisher) ResultsChanged(string, []models.Option, models.Stats) {}
func (NopPublisher) OptionsChanged(string, []models.Option)               {}
func (NopPublisher) QuestionChanged(string, string)                       {}
