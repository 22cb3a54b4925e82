// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the livetally API server.

Livetally is a real-time polling service: anyone can create a poll, share
its link, collect votes, and watch results update live. Because voters are
only weakly identified, the server enforces vote integrity with layered
signals (a persistent cookie, an optional device fingerprint, an optional
account session, and the source IP) under a startup-selected identity
policy.

# Starting the Server

The server requires environment variables, CLI flags, or a TOML file for
configuration:

	DATABASE_URL=polls.db IP_HASH_SALT=... go run main.go

Or with flags:

	go run main.go -p 3318 -t postgres -d "postgres://..." --policy account

# Configuration

Required settings:

  - DATABASE_URL (-d): postgres connection string or sqlite path
  - IP_HASH_SALT (--ip-salt): secret for IP hashing
  - SESSION_SECRET (--session-secret): required for the account policy

Optional settings:

  - PORT (-p): server port (default: 3318)
  - IDENTITY_POLICY (--policy): cookie, fingerprint, account, or minimal
  - RATE_LIMIT_NEW / RATE_LIMIT_CHANGE / RATE_WINDOW_MINUTES

# Architecture

The server uses a handler-based architecture with dependency injection:

  - identity: voter-key derivation and vote eligibility (the resolver)
  - engine: transactional poll/option/vote state (the aggregate engine)
  - sse: per-poll fan-out of committed changes to live viewers
  - handlers: HTTP request handlers
  - router: route definitions using Go 1.22+ routing
  - middleware: logging, CORS, voter cookie, identity assembly
  - models: request/response types
  - auth: tokens, sessions, IP hashing
  - db: connections and schema creation
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
