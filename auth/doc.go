// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identity token and hashing utilities.

# Voter IDs

Anonymous voters are identified by a random UUID persisted in a long-lived
cookie:

	voterID := auth.NewVoterID()

# Account Sessions

Account-backed deployments supply an HS256-signed session token whose
subject claim is the stable account id:

	accountID, err := auth.ParseAccountSession(token, secret)

Issuing these tokens is the identity provider's job; NewAccountSession
exists for tests and for deployments that share the session secret.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

For privacy-preserving rate limiting:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256. The raw address is
never stored.
*/
package auth
