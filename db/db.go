// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open connects to the configured database. dbType is "postgres" or
// "sqlite"; for sqlite the URL is a file path or ":memory:".
func Open(dbType, url string) (*sql.DB, error) {
	switch dbType {
	case "postgres":
		return sql.Open("postgres", url)
	case "sqlite":
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		conn, err := sql.Open("sqlite", url+sep+"_time_format=sqlite&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, err
		}
		// Writes to a given poll's ledger serialize through SQLite's
		// single-writer transaction model.
		conn.SetMaxOpenConns(1)
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}
