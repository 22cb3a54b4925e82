// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package identity

import (
	"errors"
	"time"

	"github.com/livetally/livetally/cliparse"
)

var (
	ErrAlreadyVoted       = errors.New("already voted")
	ErrRateLimited        = errors.New("rate limited")
	ErrMissingFingerprint = errors.New("device fingerprint required")
	ErrMissingAccount     = errors.New("account session required")
	ErrNoIdentity         = errors.New("no voter identity")
)

// Context carries the identity signals of one request. It is built at the
// HTTP boundary and passed explicitly; nothing in the vote path reads
// ambient request state.
type Context struct {
	VoterID     string // long-lived anonymous cookie token
	Fingerprint string // opaque client-computed device token
	AccountID   string // stable id from the identity provider
	IPHash      string // salted hash of the source IP
	UserAgent   string
}

// Policy selects which identity signals are mandatory and checked, and
// which rate ceilings apply. One engine, four variants.
type Policy struct {
	Name string

	// RequireFingerprint rejects votes without a fingerprint before any
	// ledger read. CheckFingerprint additionally dedups on the fingerprint
	// even when it is not the canonical voter key.
	RequireFingerprint bool
	CheckFingerprint   bool
	RequireAccount     bool

	NewVoteLimit    int
	ChangeVoteLimit int
	Window          time.Duration
}

// PolicyFromConfig maps the deployment configuration onto a Policy.
func PolicyFromConfig(cfg cliparse.Config) Policy {
	p := Policy{
		Name:            cfg.Policy,
		NewVoteLimit:    cfg.NewVoteLimit,
		ChangeVoteLimit: cfg.ChangeVoteLimit,
		Window:          time.Duration(cfg.RateWindowMinutes) * time.Minute,
	}
	switch cfg.Policy {
	case cliparse.PolicyFingerprint:
		p.RequireFingerprint = true
	case cliparse.PolicyAccount:
		p.RequireAccount = true
		p.RequireFingerprint = true
		p.CheckFingerprint = true
	}
	return p
}

// VoterKey derives the identity used to deduplicate votes per poll.
// Exactly one signal is the key, depending on the active policy.
func (p Policy) VoterKey(idc Context) (string, error) {
	if p.RequireFingerprint && idc.Fingerprint == "" {
		return "", ErrMissingFingerprint
	}
	if p.RequireAccount {
		if idc.AccountID == "" {
			return "", ErrMissingAccount
		}
		return idc.AccountID, nil
	}
	if p.Name == cliparse.PolicyFingerprint {
		return idc.Fingerprint, nil
	}
	if idc.VoterID == "" {
		return "", ErrNoIdentity
	}
	return idc.VoterID, nil
}

// ViewerKey derives the same key for a read. The fingerprint travels only
// in vote bodies, so reads never carry it; when the canonical key is an
// account id the read must still resolve it rather than rejecting on the
// absent fingerprint.
func (p Policy) ViewerKey(idc Context) (string, error) {
	if p.RequireAccount {
		if idc.AccountID == "" {
			return "", ErrMissingAccount
		}
		return idc.AccountID, nil
	}
	return p.VoterKey(idc)
}
