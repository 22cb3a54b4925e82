// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package identity decides whether a vote action is permitted under weak
identity.

# Identity Context

Every request is reduced to an explicit Context value (cookie voter id,
device fingerprint, account id, hashed IP, user agent) at the HTTP
boundary. The resolver and the engine only ever see this value.

# Policies

One resolver, four startup-selected variants:

  - cookie: the anonymous cookie token is the voter key
  - fingerprint: the fingerprint is the voter key and is mandatory
  - account: the account id is the voter key; the fingerprint is mandatory
    and ledger-checked independently, so a vote is denied if either signal
    has already voted
  - minimal: cookie token plus IP rate limiting only

# Eligibility

	key, err := resolver.VoterKey(idc)
	err = resolver.CanVote(tx, pollID, idc, key, isChanging)

For a new vote, every configured key is checked against the ledger; any
hit means ErrAlreadyVoted. The IP rate window is checked on every action,
new or change, against the policy's ceiling for that action. All checks
are reads; a denial never leaves partial state.
*/
package identity
