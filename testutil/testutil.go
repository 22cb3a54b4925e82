// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/livetally/livetally/auth"
	"github.com/livetally/livetally/cliparse"
	"github.com/livetally/livetally/db"
	"github.com/livetally/livetally/engine"
	"github.com/livetally/livetally/identity"
)

// SetupTestDB creates a fresh in-memory database with the full schema.
// Each test gets its own database; closing the connection discards it.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.CreateSchema(conn, "sqlite"); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration (cookie policy,
// 5/10 rate ceilings over a 5 minute window)
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              3318,
		DatabaseURL:       "file::memory:",
		DatabaseType:      "sqlite",
		BaseURL:           "http://localhost:3318",
		Policy:            cliparse.PolicyCookie,
		NewVoteLimit:      5,
		ChangeVoteLimit:   10,
		RateWindowMinutes: 5,
		IPHashSalt:        "test-ip-salt",
		SessionSecret:     "test-session-secret",
	}
}

// NewTestEngine builds an engine over conn with the configured policy and
// no fan-out.
func NewTestEngine(conn *sql.DB, cfg cliparse.Config) *engine.Engine {
	resolver := identity.NewResolver(identity.PolicyFromConfig(cfg))
	return engine.New(conn, cfg.DatabaseType, resolver, nil)
}

// CreateTestPoll inserts a poll row directly and returns its ID
func CreateTestPoll(t *testing.T, conn *sql.DB, ownerKey, pollType string) string {
	t.Helper()

	pollID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO poll (id, question, poll_type, owner_key, requires_account, created_at)
		VALUES ($1, 'Test Poll', $2, $3, 0, $4)
	`, pollID, pollType, ownerKey, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return pollID
}

// AddTestOption adds an option to a poll and returns the option ID
func AddTestOption(t *testing.T, conn *sql.DB, pollID, label string, position int) string {
	t.Helper()

	optionID, _ := auth.GenerateID(12)
	_, err := conn.Exec(`
		INSERT INTO option (id, poll_id, label, vote_count, deleted, position)
		VALUES ($1, $2, $3, 0, 0, $4)
	`, optionID, pollID, label, position)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}
	return optionID
}

// InsertTestVote writes a ledger row directly, bypassing the engine, and
// bumps the option counter to match. Used to stage prior state.
func InsertTestVote(t *testing.T, conn *sql.DB, pollID, optionID, voterKey, ipHash, fingerprint string, at time.Time) string {
	t.Helper()

	voteID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO vote (id, poll_id, option_id, voter_key, ip_hash, fingerprint, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'test-agent', $7)
	`, voteID, pollID, optionID, voterKey, ipHash, fingerprint, at)
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
	_, err = conn.Exec(`UPDATE option SET vote_count = vote_count + 1 WHERE id = $1`, optionID)
	if err != nil {
		t.Fatalf("Failed to bump test count: %v", err)
	}
	return voteID
}

// OptionCount reads the cached counter for one option
func OptionCount(t *testing.T, conn *sql.DB, optionID string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT vote_count FROM option WHERE id = $1`, optionID).Scan(&n); err != nil {
		t.Fatalf("Failed to read vote_count: %v", err)
	}
	return n
}

// LedgerCount counts ledger rows for one option
func LedgerCount(t *testing.T, conn *sql.DB, optionID string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE option_id = $1`, optionID).Scan(&n); err != nil {
		t.Fatalf("Failed to count ledger rows: %v", err)
	}
	return n
}

// Identity builds an identity context for tests
func Identity(voterID, ip string) identity.Context {
	cfg := GetTestConfig()
	return identity.Context{
		VoterID:   voterID,
		IPHash:    auth.HashIP(ip, cfg.IPHashSalt),
		UserAgent: "test-agent",
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
