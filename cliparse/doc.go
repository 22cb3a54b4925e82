// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration from CLI flags, environment
variables, and an optional TOML file.

# Precedence

Flags win over the config file; environment variables fill anything still
unset; hard defaults apply last.

	livetally -config livetally.toml -p 3318 -d "postgres://..."

# Required settings

  - DATABASE_URL (-d): postgres connection string or sqlite path
  - IP_HASH_SALT (--ip-salt): secret for IP hashing
  - SESSION_SECRET (--session-secret): required when policy is "account"

# Identity policy

IDENTITY_POLICY (--policy) selects which identity signals deduplicate
votes:

  - cookie: anonymous voter cookie (default)
  - fingerprint: client-computed device fingerprint, mandatory
  - account: account id, with the fingerprint checked independently
  - minimal: cookie plus IP rate limiting only

Rate ceilings (RATE_LIMIT_NEW, RATE_LIMIT_CHANGE) and the window
(RATE_WINDOW_MINUTES) default to 5/10/5, or 3/3/5 under the minimal
policy.
*/
package cliparse
