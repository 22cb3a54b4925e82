// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/livetally/livetally/auth"
	"github.com/livetally/livetally/identity"
	"github.com/livetally/livetally/models"
)

// CastOrChangeVote is the central operation: it applies one vote action as
// a single atomic unit. Any failure past the eligibility check aborts the
// whole transaction with no partial ledger mutation, and the caller sees
// the original denial or validation reason.
func (e *Engine) CastOrChangeVote(pollID string, optionIDs []string, idc identity.Context) (models.Tally, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return models.Tally{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize vote actions per poll: with the poll row locked, the
	// prior-vote read below always sees the latest committed ballot.
	if e.lockOnVote {
		if _, err := tx.Exec(`SELECT id FROM poll WHERE id = $1 FOR UPDATE`, pollID); err != nil {
			return models.Tally{}, fmt.Errorf("failed to lock poll: %w", err)
		}
	}

	poll, err := e.loadPoll(tx, pollID)
	if err != nil {
		return models.Tally{}, err
	}
	if poll.RequiresAccount && idc.AccountID == "" {
		return models.Tally{}, identity.ErrMissingAccount
	}

	// Mandatory-signal failures reject before touching the ledger.
	voterKey, err := e.resolver.VoterKey(idc)
	if err != nil {
		return models.Tally{}, err
	}

	chosen, err := e.validateChoices(tx, poll, optionIDs)
	if err != nil {
		return models.Tally{}, err
	}

	prior, err := e.votedOptionIDs(tx, pollID, voterKey)
	if err != nil {
		return models.Tally{}, err
	}
	isChanging := len(prior) > 0

	if err := e.resolver.CanVote(tx, pollID, idc, voterKey, isChanging); err != nil {
		return models.Tally{}, err
	}

	// Vote change: all prior live rows are replaced together, and each
	// actually-deleted row's option count is decremented in the same
	// transaction, so the cache follows the ledger even if the prior read
	// was stale.
	if isChanging {
		removed, err := e.deleteVotes(tx, pollID, voterKey)
		if err != nil {
			return models.Tally{}, err
		}
		for _, optID := range removed {
			// Clamped at zero: a drifted cache must never go negative.
			if _, err := tx.Exec(`
				UPDATE option
				SET vote_count = CASE WHEN vote_count > 0 THEN vote_count - 1 ELSE 0 END
				WHERE id = $1
			`, optID); err != nil {
				return models.Tally{}, fmt.Errorf("failed to decrement count: %w", err)
			}
		}
	}

	now := time.Now()
	for _, optID := range chosen {
		voteID, err := auth.GenerateID(16)
		if err != nil {
			return models.Tally{}, err
		}
		if _, err := tx.Exec(`
			INSERT INTO vote (id, poll_id, option_id, voter_key, ip_hash, fingerprint, user_agent, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, voteID, pollID, optID, voterKey, idc.IPHash, idc.Fingerprint, idc.UserAgent, now); err != nil {
			return models.Tally{}, fmt.Errorf("failed to insert vote: %w", err)
		}
		if _, err := tx.Exec(`
			UPDATE option SET vote_count = vote_count + 1 WHERE id = $1
		`, optID); err != nil {
			return models.Tally{}, fmt.Errorf("failed to increment count: %w", err)
		}
	}

	options, err := e.liveOptions(tx, pollID)
	if err != nil {
		return models.Tally{}, err
	}
	stats, err := e.computeStats(tx, pollID)
	if err != nil {
		return models.Tally{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Tally{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("vote recorded", "poll_id", pollID, "options", len(chosen), "is_change", isChanging)

	// Commit first, publish second: viewers never see an uncommitted tally.
	e.pub.ResultsChanged(pollID, options, stats)

	return models.Tally{Options: options, Stats: stats, Changed: isChanging}, nil
}

// validateChoices checks the chosen option ids against the poll's live
// option set and its choice mode. Duplicates collapse; order is preserved.
func (e *Engine) validateChoices(q querier, poll models.Poll, optionIDs []string) ([]string, error) {
	chosen := make([]string, 0, len(optionIDs))
	seen := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		chosen = append(chosen, id)
	}
	if len(chosen) == 0 {
		return nil, fmt.Errorf("%w: at least one option is required", ErrInvalidInput)
	}
	if !poll.AllowMultiple && len(chosen) > 1 {
		return nil, fmt.Errorf("%w: single-choice poll accepts exactly one option", ErrInvalidInput)
	}

	live, err := e.liveOptions(q, poll.ID)
	if err != nil {
		return nil, err
	}
	valid := make(map[string]bool, len(live))
	for _, opt := range live {
		valid[opt.ID] = true
	}
	for _, id := range chosen {
		// Soft-deleted options never accept new votes.
		if !valid[id] {
			return nil, fmt.Errorf("%w: unknown option %s", ErrInvalidInput, id)
		}
	}
	return chosen, nil
}

// deleteVotes removes every live ledger row for one voter key on one poll
// and reports which option ids actually lost a row.
func (e *Engine) deleteVotes(tx *sql.Tx, pollID, voterKey string) ([]string, error) {
	rows, err := tx.Query(`
		DELETE FROM vote WHERE poll_id = $1 AND voter_key = $2 RETURNING option_id
	`, pollID, voterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to delete prior votes: %w", err)
	}
	defer rows.Close()

	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted vote: %w", err)
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

// votedOptionIDs returns the live vote rows for one voter key on one poll.
func (e *Engine) votedOptionIDs(q querier, pollID, voterKey string) ([]string, error) {
	if voterKey == "" {
		return nil, nil
	}
	rows, err := q.Query(`
		SELECT option_id FROM vote WHERE poll_id = $1 AND voter_key = $2
	`, pollID, voterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior votes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
