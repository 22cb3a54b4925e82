// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(conn *sql.DB, dbType string) error {
	ddl := schemaSQLite
	if dbType == "postgres" {
		ddl = schemaPostgres
	}
	if _, err := conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Boolean-ish columns (requires_account, deleted) are INTEGER 0/1 in both
// dialects so rows scan identically through database/sql.
const schemaPostgres = `
-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    poll_type TEXT NOT NULL CHECK (poll_type IN ('single', 'multiple')),
    owner_key TEXT NOT NULL,
    requires_account INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

-- Options: vote_count is a derived cache of the vote ledger, maintained by
-- paired increment/decrement inside the same transaction as ledger writes.
-- Logically removed options are soft-deleted so historical votes still
-- resolve to a valid row.
CREATE TABLE IF NOT EXISTS option (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id),
    label TEXT NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_option_poll_id ON option(poll_id);

-- Votes: the append/replace-only ledger, source of truth for all aggregates.
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id),
    option_id TEXT NOT NULL REFERENCES option(id),
    voter_key TEXT NOT NULL,
    ip_hash TEXT NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_vote_poll_voter ON vote(poll_id, voter_key);
CREATE INDEX IF NOT EXISTS idx_vote_poll_ip_time ON vote(poll_id, ip_hash, created_at);
CREATE INDEX IF NOT EXISTS idx_vote_poll_fingerprint ON vote(poll_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_vote_option_id ON vote(option_id);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    poll_type TEXT NOT NULL CHECK (poll_type IN ('single', 'multiple')),
    owner_key TEXT NOT NULL,
    requires_account INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS option (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id),
    label TEXT NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_option_poll_id ON option(poll_id);

CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id),
    option_id TEXT NOT NULL REFERENCES option(id),
    voter_key TEXT NOT NULL,
    ip_hash TEXT NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_vote_poll_voter ON vote(poll_id, voter_key);
CREATE INDEX IF NOT EXISTS idx_vote_poll_ip_time ON vote(poll_id, ip_hash, created_at);
CREATE INDEX IF NOT EXISTS idx_vote_poll_fingerprint ON vote(poll_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_vote_option_id ON vote(option_id);
`
