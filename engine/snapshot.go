// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"github.com/livetally/livetally/identity"
	"github.com/livetally/livetally/models"
)

// Snapshot returns the read-only view of a poll for one viewer. It never
// mutates anything; calling it twice with no intervening vote yields
// identical output.
func (e *Engine) Snapshot(pollID string, idc identity.Context) (models.Snapshot, error) {
	poll, err := e.loadPoll(e.db, pollID)
	if err != nil {
		return models.Snapshot{}, err
	}

	options, err := e.liveOptions(e.db, pollID)
	if err != nil {
		return models.Snapshot{}, err
	}

	stats, err := e.computeStats(e.db, pollID)
	if err != nil {
		return models.Snapshot{}, err
	}

	// Best-effort viewer key: a read with incomplete identity signals
	// degrades to "has not voted" instead of failing.
	votedIDs := []string{}
	if viewerKey, err := e.resolver.ViewerKey(idc); err == nil {
		ids, err := e.votedOptionIDs(e.db, pollID, viewerKey)
		if err != nil {
			return models.Snapshot{}, err
		}
		if ids != nil {
			votedIDs = ids
		}
	}

	return models.Snapshot{
		Poll:           poll,
		Options:        options,
		HasVoted:       len(votedIDs) > 0,
		VotedOptionIDs: votedIDs,
		Stats:          stats,
	}, nil
}
