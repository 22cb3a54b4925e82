// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Opening a connection

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

Supports postgres (lib/pq) and sqlite (modernc.org/sqlite). The sqlite
path enables WAL, foreign keys, and a busy timeout, and caps the pool at
one connection so ledger transactions serialize.

# Schema Creation

CreateSchema initializes all required tables for the active dialect:

	if err := db.CreateSchema(conn, cfg.DatabaseType); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - poll: question, type, owner key, account requirement
  - option: labels with the cached vote_count and soft-delete flag
  - vote: the immutable ledger, one row per (ballot, option)

# Relationships

	poll 1──* option
	poll 1──* vote
	option 1──* vote

Option rows are never hard-deleted while votes reference them, so the
ledger keeps referential integrity.

# Indexes

  - vote(poll_id, voter_key): has-voted lookups
  - vote(poll_id, ip_hash, created_at): rate-limit window counts
  - vote(poll_id, fingerprint): independent fingerprint checks
  - vote(option_id): counter rebuilds
*/
package db
