// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package identity

import (
	"database/sql"
	"fmt"
	"time"
)

// Querier is the slice of database/sql shared by *sql.DB and *sql.Tx.
// The engine runs eligibility inside its vote transaction.
type Querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// Resolver answers whether a vote action is permitted under the active
// policy. All denial paths are pure reads; the ledger is never mutated
// here.
type Resolver struct {
	policy Policy
}

func NewResolver(policy Policy) *Resolver {
	return &Resolver{policy: policy}
}

func (r *Resolver) Policy() Policy {
	return r.policy
}

// VoterKey derives the dedup key for the request, or fails before any
// ledger read when a mandatory signal is absent.
func (r *Resolver) VoterKey(idc Context) (string, error) {
	return r.policy.VoterKey(idc)
}

// ViewerKey derives the dedup key for a read-only request.
func (r *Resolver) ViewerKey(idc Context) (string, error) {
	return r.policy.ViewerKey(idc)
}

// CanVote runs the eligibility checks for one vote action.
//
// Identity-uniqueness is relaxed for a vote change (a known voter may
// revote), but the rate ceiling always applies; changing only selects the
// looser ceiling, never skips the check. Identity and rate checks are
// independent and both must pass: rate limiting blunts bulk voting with
// fresh cookies or fingerprints that identity checks alone cannot catch.
func (r *Resolver) CanVote(q Querier, pollID string, idc Context, voterKey string, isChanging bool) error {
	if !isChanging {
		voted, err := hasVoteBy(q, pollID, "voter_key", voterKey)
		if err != nil {
			return err
		}
		if voted {
			return ErrAlreadyVoted
		}
		if r.policy.CheckFingerprint && idc.Fingerprint != "" {
			voted, err := hasVoteBy(q, pollID, "fingerprint", idc.Fingerprint)
			if err != nil {
				return err
			}
			if voted {
				return ErrAlreadyVoted
			}
		}
	}

	limit := r.policy.NewVoteLimit
	if isChanging {
		limit = r.policy.ChangeVoteLimit
	}
	cutoff := time.Now().Add(-r.policy.Window)

	var recent int
	err := q.QueryRow(`
		SELECT COUNT(*) FROM vote
		WHERE poll_id = $1 AND ip_hash = $2 AND created_at > $3
	`, pollID, idc.IPHash, cutoff).Scan(&recent)
	if err != nil {
		return fmt.Errorf("failed to count recent votes: %w", err)
	}
	if recent >= limit {
		return ErrRateLimited
	}

	return nil
}

func hasVoteBy(q Querier, pollID, column, value string) (bool, error) {
	var n int
	err := q.QueryRow(`
		SELECT COUNT(1) FROM vote
		WHERE poll_id = $1 AND `+column+` = $2
	`, pollID, value).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check prior votes: %w", err)
	}
	return n > 0, nil
}
