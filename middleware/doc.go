// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and request/response helpers.

# Middleware

  - WithLogging: request start/completion logging with timing
  - WithVoterCookie: issues the persistent anonymous voter token
  - CORS: cross-origin support with preflight handling

# Identity

Identity reduces a request to the explicit identity context consumed by
the resolver and the engine:

	idc := middleware.Identity(r, cfg)

It reads the voter cookie, validates an optional Authorization bearer
session, and hashes the client IP. Handlers add the body-carried
fingerprint afterwards. Nothing downstream reads request state directly.

# Helpers

  - JSONResponse / ErrorResponse: JSON encoding with status codes
  - ParseJSONBody: request body decoding
  - GetClientIP: X-Forwarded-For / X-Real-IP aware client address
*/
package middleware
