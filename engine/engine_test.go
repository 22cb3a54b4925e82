// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/livetally/livetally/engine"
	"github.com/livetally/livetally/identity"
	"github.com/livetally/livetally/models"
	"github.com/livetally/livetally/testutil"
)

func TestCreatePollValidation(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	tests := []struct {
		name     string
		question string
		options  []string
		pollType string
		wantErr  error
	}{
		{
			name:     "valid single-choice poll",
			question: "Pick one",
			options:  []string{"A", "B"},
			pollType: models.TypeSingle,
		},
		{
			name:     "valid multiple-choice poll",
			question: "Pick any",
			options:  []string{"A", "B", "C"},
			pollType: models.TypeMultiple,
		},
		{
			name:     "empty question",
			question: "   ",
			options:  []string{"A", "B"},
			pollType: models.TypeSingle,
			wantErr:  engine.ErrInvalidInput,
		},
		{
			name:     "too few options",
			question: "Pick one",
			options:  []string{"A"},
			pollType: models.TypeSingle,
			wantErr:  engine.ErrInvalidInput,
		},
		{
			name:     "blank options do not count",
			question: "Pick one",
			options:  []string{"A", "  ", ""},
			pollType: models.TypeSingle,
			wantErr:  engine.ErrInvalidInput,
		},
		{
			name:     "bad poll type",
			question: "Pick one",
			options:  []string{"A", "B"},
			pollType: "ranked",
			wantErr:  engine.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poll, options, err := eng.CreatePoll(tt.question, tt.options, tt.pollType, false, "owner-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreatePoll failed: %v", err)
			}
			if poll.ID == "" {
				t.Error("Expected non-empty poll ID")
			}
			if len(options) < 2 {
				t.Errorf("Expected at least 2 options, got %d", len(options))
			}
		})
	}
}

// TestVoteChangeRoundTrip: voting A then changing to B leaves exactly one
// live vote (B), A decremented, B incremented, ledger rows for the voter
// unchanged at 1.
func TestVoteChangeRoundTrip(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA, optB := options[0].ID, options[1].ID

	k1 := testutil.Identity("K1", "10.0.0.1")

	tally, err := eng.CastOrChangeVote(poll.ID, []string{optA}, k1)
	if err != nil {
		t.Fatalf("First vote failed: %v", err)
	}
	if tally.Changed {
		t.Error("First vote should not be a change")
	}

	snap, err := eng.Snapshot(poll.ID, k1)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snap.HasVoted {
		t.Error("Expected has_voted after voting")
	}
	if len(snap.VotedOptionIDs) != 1 || snap.VotedOptionIDs[0] != optA {
		t.Errorf("Expected voted option [%s], got %v", optA, snap.VotedOptionIDs)
	}
	assertCounts(t, snap.Options, map[string]int{optA: 1, optB: 0})

	tally, err = eng.CastOrChangeVote(poll.ID, []string{optB}, k1)
	if err != nil {
		t.Fatalf("Vote change failed: %v", err)
	}
	if !tally.Changed {
		t.Error("Second vote should be a change")
	}

	snap, err = eng.Snapshot(poll.ID, k1)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	assertCounts(t, snap.Options, map[string]int{optA: 0, optB: 1})
	if len(snap.VotedOptionIDs) != 1 || snap.VotedOptionIDs[0] != optB {
		t.Errorf("Expected voted option [%s], got %v", optB, snap.VotedOptionIDs)
	}

	var ledgerRows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE poll_id = $1 AND voter_key = $2`, poll.ID, "K1").Scan(&ledgerRows); err != nil {
		t.Fatalf("Failed to count ledger rows: %v", err)
	}
	if ledgerRows != 1 {
		t.Errorf("Expected exactly 1 ledger row for K1, got %d", ledgerRows)
	}
}

// TestSecondVoterIndependent: a fresh voter key is never denied as
// already-voted, and the first voter's ballot is untouched.
func TestSecondVoterIndependent(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA := options[0].ID

	if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, testutil.Identity("K1", "10.0.0.1")); err != nil {
		t.Fatalf("K1 vote failed: %v", err)
	}
	tally, err := eng.CastOrChangeVote(poll.ID, []string{optA}, testutil.Identity("K2", "10.0.0.2"))
	if err != nil {
		t.Fatalf("K2 vote failed: %v", err)
	}
	assertCounts(t, tally.Options, map[string]int{optA: 2})
	if tally.Stats.UniqueVoters != 2 {
		t.Errorf("Expected 2 unique voters, got %d", tally.Stats.UniqueVoters)
	}

	// K1's row is untouched
	var k1Rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE poll_id = $1 AND voter_key = 'K1'`, poll.ID).Scan(&k1Rows); err != nil {
		t.Fatalf("Failed to count K1 rows: %v", err)
	}
	if k1Rows != 1 {
		t.Errorf("Expected 1 ledger row for K1, got %d", k1Rows)
	}
}

func TestDuplicateVoteDenied(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA, optB := options[0].ID, options[1].ID

	k1 := testutil.Identity("K1", "10.0.0.1")
	if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, k1); err != nil {
		t.Fatalf("First vote failed: %v", err)
	}

	// Same key voting again is a change, never a duplicate denial...
	if _, err := eng.CastOrChangeVote(poll.ID, []string{optB}, k1); err != nil {
		t.Fatalf("Vote change should be allowed: %v", err)
	}

	// ...but the same fingerprint under the account policy is denied even
	// with a fresh account id.
	cfg := testutil.GetTestConfig()
	cfg.Policy = "account"
	accEng := testutil.NewTestEngine(conn, cfg)

	acct1 := identity.Context{AccountID: "acct-1", Fingerprint: "fp-shared", IPHash: "ip-a"}
	acct2 := identity.Context{AccountID: "acct-2", Fingerprint: "fp-shared", IPHash: "ip-b"}

	poll2, options2, err := accEng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	if _, err := accEng.CastOrChangeVote(poll2.ID, []string{options2[0].ID}, acct1); err != nil {
		t.Fatalf("acct-1 vote failed: %v", err)
	}
	_, err = accEng.CastOrChangeVote(poll2.ID, []string{options2[0].ID}, acct2)
	if !errors.Is(err, identity.ErrAlreadyVoted) {
		t.Fatalf("Expected ErrAlreadyVoted for shared fingerprint, got %v", err)
	}
}

// TestMultipleChoiceAtomic: one action voting {A,C} increments both
// counts together, as a single ballot.
func TestMultipleChoiceAtomic(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick any", []string{"A", "B", "C"}, models.TypeMultiple, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA, optB, optC := options[0].ID, options[1].ID, options[2].ID

	k1 := testutil.Identity("K1", "10.0.0.1")
	tally, err := eng.CastOrChangeVote(poll.ID, []string{optA, optC}, k1)
	if err != nil {
		t.Fatalf("Multi vote failed: %v", err)
	}
	assertCounts(t, tally.Options, map[string]int{optA: 1, optB: 0, optC: 1})
	if tally.Stats.TotalVotes != 2 {
		t.Errorf("Expected 2 total votes, got %d", tally.Stats.TotalVotes)
	}
	if tally.Stats.UniqueVoters != 1 {
		t.Errorf("Expected 1 unique voter, got %d", tally.Stats.UniqueVoters)
	}

	// Changing replaces the whole prior set together
	tally, err = eng.CastOrChangeVote(poll.ID, []string{optB}, k1)
	if err != nil {
		t.Fatalf("Vote change failed: %v", err)
	}
	assertCounts(t, tally.Options, map[string]int{optA: 0, optB: 1, optC: 0})
	if tally.Stats.TotalVotes != 1 {
		t.Errorf("Expected 1 total vote after change, got %d", tally.Stats.TotalVotes)
	}
}

func TestSingleChoiceRejectsMultiple(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}

	_, err = eng.CastOrChangeVote(poll.ID, []string{options[0].ID, options[1].ID}, testutil.Identity("K1", "10.0.0.1"))
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}

	// Denied validation leaves no ledger rows
	var rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE poll_id = $1`, poll.ID).Scan(&rows); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if rows != 0 {
		t.Errorf("Expected no ledger rows after rejection, got %d", rows)
	}
}

// TestRateLimitBoundary: N distinct voter keys from one IP fill the
// window; the (N+1)th is denied; after the window elapses the same IP
// succeeds again.
func TestRateLimitBoundary(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	cfg := testutil.GetTestConfig()
	cfg.NewVoteLimit = 3
	eng := testutil.NewTestEngine(conn, cfg)

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA := options[0].ID

	voters := []string{"K1", "K2", "K3"}
	for _, k := range voters {
		if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, testutil.Identity(k, "10.0.0.9")); err != nil {
			t.Fatalf("Vote by %s failed: %v", k, err)
		}
	}

	_, err = eng.CastOrChangeVote(poll.ID, []string{optA}, testutil.Identity("K4", "10.0.0.9"))
	if !errors.Is(err, identity.ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited for 4th vote, got %v", err)
	}

	// A different IP is unaffected
	if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, testutil.Identity("K5", "10.0.0.10")); err != nil {
		t.Fatalf("Vote from fresh IP failed: %v", err)
	}

	// Age the window out and the original IP works again
	old := time.Now().Add(-10 * time.Minute)
	if _, err := conn.Exec(`UPDATE vote SET created_at = $1 WHERE poll_id = $2`, old, poll.ID); err != nil {
		t.Fatalf("Failed to age votes: %v", err)
	}
	if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, testutil.Identity("K4", "10.0.0.9")); err != nil {
		t.Fatalf("Vote after window elapsed failed: %v", err)
	}
}

// TestRateLimitAppliesToChanges: revoting selects the looser ceiling but
// never skips the check.
func TestRateLimitAppliesToChanges(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	cfg := testutil.GetTestConfig()
	cfg.NewVoteLimit = 1
	cfg.ChangeVoteLimit = 2
	eng := testutil.NewTestEngine(conn, cfg)

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA, optB := options[0].ID, options[1].ID

	k1 := testutil.Identity("K1", "10.0.0.1")
	if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, k1); err != nil {
		t.Fatalf("First vote failed: %v", err)
	}

	// One row in the window; change ceiling is 2, so the change passes
	if _, err := eng.CastOrChangeVote(poll.ID, []string{optB}, k1); err != nil {
		t.Fatalf("First change should pass under change ceiling: %v", err)
	}

	// Stage a second recent row from the same IP; now changes are capped too
	testutil.InsertTestVote(t, conn, poll.ID, optA, "K9", k1.IPHash, "", time.Now())
	_, err = eng.CastOrChangeVote(poll.ID, []string{optA}, k1)
	if !errors.Is(err, identity.ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited on change past ceiling, got %v", err)
	}
}

func TestSoftDeletedOptionRejectsVotes(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B", "C"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optC := options[2].ID

	// A historical vote exists for C, then C is removed
	if _, err := eng.CastOrChangeVote(poll.ID, []string{optC}, testutil.Identity("K1", "10.0.0.1")); err != nil {
		t.Fatalf("Vote for C failed: %v", err)
	}
	if err := eng.RemoveOption(poll.ID, optC, "owner-1"); err != nil {
		t.Fatalf("RemoveOption failed: %v", err)
	}

	// New votes for C are invalid
	_, err = eng.CastOrChangeVote(poll.ID, []string{optC}, testutil.Identity("K2", "10.0.0.2"))
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for removed option, got %v", err)
	}

	// The historical ledger row survives the soft delete
	if n := testutil.LedgerCount(t, conn, optC); n != 1 {
		t.Errorf("Expected historical ledger row to survive, got %d rows", n)
	}

	// The removed option is hidden from snapshots
	snap, err := eng.Snapshot(poll.ID, testutil.Identity("K2", "10.0.0.2"))
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	for _, opt := range snap.Options {
		if opt.ID == optC {
			t.Error("Removed option should be hidden from snapshot")
		}
	}
}

// Counter/ledger consistency across a series of operations
func TestCounterMatchesLedger(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick any", []string{"A", "B", "C"}, models.TypeMultiple, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}

	ids := []string{options[0].ID, options[1].ID, options[2].ID}
	actions := []struct {
		voter string
		ip    string
		picks []string
	}{
		{"K1", "10.0.0.1", []string{ids[0], ids[1]}},
		{"K2", "10.0.0.2", []string{ids[2]}},
		{"K1", "10.0.0.1", []string{ids[2]}}, // change
		{"K3", "10.0.0.3", []string{ids[0], ids[2]}},
		{"K2", "10.0.0.2", []string{ids[0]}}, // change
	}
	for _, a := range actions {
		if _, err := eng.CastOrChangeVote(poll.ID, a.picks, testutil.Identity(a.voter, a.ip)); err != nil {
			t.Fatalf("Vote by %s failed: %v", a.voter, err)
		}
	}

	for _, id := range ids {
		if got, want := testutil.OptionCount(t, conn, id), testutil.LedgerCount(t, conn, id); got != want {
			t.Errorf("Option %s: cached count %d != ledger count %d", id, got, want)
		}
	}

	snap, err := eng.Snapshot(poll.ID, testutil.Identity("K1", "10.0.0.1"))
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	var ledgerTotal int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE poll_id = $1`, poll.ID).Scan(&ledgerTotal); err != nil {
		t.Fatalf("Failed to count ledger: %v", err)
	}
	if snap.Stats.TotalVotes != ledgerTotal {
		t.Errorf("stats.total_votes %d != ledger %d", snap.Stats.TotalVotes, ledgerTotal)
	}
	if snap.Stats.UniqueVoters != 3 {
		t.Errorf("Expected 3 unique voters, got %d", snap.Stats.UniqueVoters)
	}
}

func TestRebuildCounts(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA := options[0].ID

	if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, testutil.Identity("K1", "10.0.0.1")); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}

	// Corrupt the cache, then rebuild from the ledger
	if _, err := conn.Exec(`UPDATE option SET vote_count = 99 WHERE id = $1`, optA); err != nil {
		t.Fatalf("Failed to corrupt count: %v", err)
	}
	if err := eng.RebuildCounts(poll.ID); err != nil {
		t.Fatalf("RebuildCounts failed: %v", err)
	}
	if got := testutil.OptionCount(t, conn, optA); got != 1 {
		t.Errorf("Expected rebuilt count 1, got %d", got)
	}
}

// Snapshot is a pure read: two calls with no intervening vote are equal.
func TestSnapshotIdempotent(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	k1 := testutil.Identity("K1", "10.0.0.1")
	if _, err := eng.CastOrChangeVote(poll.ID, []string{options[0].ID}, k1); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}

	first, err := eng.Snapshot(poll.ID, k1)
	if err != nil {
		t.Fatalf("First snapshot failed: %v", err)
	}
	second, err := eng.Snapshot(poll.ID, k1)
	if err != nil {
		t.Fatalf("Second snapshot failed: %v", err)
	}
	if first.HasVoted != second.HasVoted ||
		len(first.Options) != len(second.Options) ||
		first.Stats.TotalVotes != second.Stats.TotalVotes ||
		first.Stats.UniqueVoters != second.Stats.UniqueVoters {
		t.Error("Snapshots differ with no intervening vote")
	}
	for i := range first.Options {
		if first.Options[i] != second.Options[i] {
			t.Errorf("Option %d differs between snapshots", i)
		}
	}
}

func TestOwnershipGating(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}

	if _, err := eng.AddOption(poll.ID, "C", "intruder"); !errors.Is(err, engine.ErrForbidden) {
		t.Errorf("Expected ErrForbidden adding option as non-owner, got %v", err)
	}
	if err := eng.RemoveOption(poll.ID, options[0].ID, "intruder"); !errors.Is(err, engine.ErrForbidden) {
		t.Errorf("Expected ErrForbidden removing option as non-owner, got %v", err)
	}
	if err := eng.UpdateQuestion(poll.ID, "New question", "intruder"); !errors.Is(err, engine.ErrForbidden) {
		t.Errorf("Expected ErrForbidden editing question as non-owner, got %v", err)
	}

	if _, err := eng.AddOption("no-such-poll", "C", "owner-1"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing poll, got %v", err)
	}
	if err := eng.RemoveOption(poll.ID, "no-such-option", "owner-1"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing option, got %v", err)
	}

	opt, err := eng.AddOption(poll.ID, "C", "owner-1")
	if err != nil {
		t.Fatalf("Owner AddOption failed: %v", err)
	}
	if opt.Label != "C" {
		t.Errorf("Expected label C, got %s", opt.Label)
	}
}

func TestRequiresAccountPrecondition(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Members only", []string{"A", "B"}, models.TypeSingle, true, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}

	_, err = eng.CastOrChangeVote(poll.ID, []string{options[0].ID}, testutil.Identity("K1", "10.0.0.1"))
	if !errors.Is(err, identity.ErrMissingAccount) {
		t.Fatalf("Expected ErrMissingAccount, got %v", err)
	}

	idc := testutil.Identity("K1", "10.0.0.1")
	idc.AccountID = "acct-1"
	if _, err := eng.CastOrChangeVote(poll.ID, []string{options[0].ID}, idc); err != nil {
		t.Fatalf("Vote with account failed: %v", err)
	}
}

// recordingPublisher captures fan-out calls for ordering assertions.
type recordingPublisher struct {
	results   []models.Stats
	options   [][]models.Option
	questions []string
}

func (p *recordingPublisher) ResultsChanged(pollID string, options []models.Option, stats models.Stats) {
	p.results = append(p.results, stats)
}

func (p *recordingPublisher) OptionsChanged(pollID string, options []models.Option) {
	p.options = append(p.options, options)
}

func (p *recordingPublisher) QuestionChanged(pollID, question string) {
	p.questions = append(p.questions, question)
}

func TestPublishAfterCommit(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	cfg := testutil.GetTestConfig()
	pub := &recordingPublisher{}
	resolver := identity.NewResolver(identity.PolicyFromConfig(cfg))
	eng := engine.New(conn, cfg.DatabaseType, resolver, pub)

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}

	if _, err := eng.CastOrChangeVote(poll.ID, []string{options[0].ID}, testutil.Identity("K1", "10.0.0.1")); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if len(pub.results) != 1 || pub.results[0].TotalVotes != 1 {
		t.Fatalf("Expected one vote-update event with 1 total vote, got %+v", pub.results)
	}

	// A denied vote publishes nothing
	if _, err := eng.CastOrChangeVote(poll.ID, []string{"bogus"}, testutil.Identity("K2", "10.0.0.2")); err == nil {
		t.Fatal("Expected error for bogus option")
	}
	if len(pub.results) != 1 {
		t.Errorf("Denied vote must not publish, got %d events", len(pub.results))
	}

	if _, err := eng.AddOption(poll.ID, "C", "owner-1"); err != nil {
		t.Fatalf("AddOption failed: %v", err)
	}
	if len(pub.options) != 1 || len(pub.options[0]) != 3 {
		t.Errorf("Expected one options-update event with 3 options, got %+v", pub.options)
	}

	// Question edits reach live viewers too
	if err := eng.UpdateQuestion(poll.ID, "Pick one now", "owner-1"); err != nil {
		t.Fatalf("UpdateQuestion failed: %v", err)
	}
	if len(pub.questions) != 1 || pub.questions[0] != "Pick one now" {
		t.Errorf("Expected one poll-update event with the new question, got %+v", pub.questions)
	}
	if err := eng.UpdateQuestion(poll.ID, "Hijacked", "intruder"); err == nil {
		t.Fatal("Expected error for non-owner edit")
	}
	if len(pub.questions) != 1 {
		t.Errorf("Denied edit must not publish, got %d events", len(pub.questions))
	}
}

// An account holder's reads carry no fingerprint (it travels only in vote
// bodies); has_voted must still resolve through the account id.
func TestSnapshotAccountPolicyHasVoted(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	cfg := testutil.GetTestConfig()
	cfg.Policy = "account"
	eng := testutil.NewTestEngine(conn, cfg)

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA := options[0].ID

	voter := identity.Context{AccountID: "acct-1", Fingerprint: "fp-1", IPHash: "ip-a"}
	if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, voter); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}

	reader := identity.Context{AccountID: "acct-1", IPHash: "ip-a"}
	snap, err := eng.Snapshot(poll.ID, reader)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snap.HasVoted {
		t.Error("Account holder who voted must read has_voted=true")
	}
	if len(snap.VotedOptionIDs) != 1 || snap.VotedOptionIDs[0] != optA {
		t.Errorf("Expected voted option [%s], got %v", optA, snap.VotedOptionIDs)
	}

	other, err := eng.Snapshot(poll.ID, identity.Context{AccountID: "acct-2", IPHash: "ip-b"})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if other.HasVoted {
		t.Error("A different account must read has_voted=false")
	}
}

// A change collapses every live row the delete actually removed, even when
// storage drift left more than one ballot for the voter.
func TestChangeCollapsesDuplicateBallots(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA, optB := options[0].ID, options[1].ID

	k1 := testutil.Identity("K1", "10.0.0.1")
	old := time.Now().Add(-10 * time.Minute)
	testutil.InsertTestVote(t, conn, poll.ID, optA, "K1", k1.IPHash, "", old)
	testutil.InsertTestVote(t, conn, poll.ID, optB, "K1", k1.IPHash, "", old)

	if _, err := eng.CastOrChangeVote(poll.ID, []string{optA}, k1); err != nil {
		t.Fatalf("Vote change failed: %v", err)
	}

	var rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE poll_id = $1 AND voter_key = 'K1'`, poll.ID).Scan(&rows); err != nil {
		t.Fatalf("Failed to count ledger rows: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected exactly 1 live ballot after change, got %d", rows)
	}
	if got := testutil.OptionCount(t, conn, optA); got != 1 {
		t.Errorf("Expected option A at 1, got %d", got)
	}
	if got := testutil.OptionCount(t, conn, optB); got != 0 {
		t.Errorf("Expected option B at 0, got %d", got)
	}
}

// A ledger write failing mid-ballot must leave no partial state: earlier
// inserts and increments of the same action roll back with it.
func TestVoteAbortLeavesNoPartialState(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	eng := testutil.NewTestEngine(conn, testutil.GetTestConfig())

	poll, options, err := eng.CreatePoll("Pick any", []string{"A", "B", "C"}, models.TypeMultiple, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	optA, optC := options[0].ID, options[2].ID

	// Fail the second ledger insert, after A's insert and increment ran
	if _, err := conn.Exec(fmt.Sprintf(`
		CREATE TRIGGER fail_vote_insert BEFORE INSERT ON vote
		WHEN NEW.option_id = '%s'
		BEGIN SELECT RAISE(ABORT, 'induced write failure'); END
	`, optC)); err != nil {
		t.Fatalf("Failed to create trigger: %v", err)
	}
	defer conn.Exec(`DROP TRIGGER fail_vote_insert`)

	_, err = eng.CastOrChangeVote(poll.ID, []string{optA, optC}, testutil.Identity("K1", "10.0.0.1"))
	if err == nil {
		t.Fatal("Expected vote to fail")
	}

	for _, id := range []string{optA, optC} {
		if got := testutil.OptionCount(t, conn, id); got != 0 {
			t.Errorf("Option %s: expected count 0 after abort, got %d", id, got)
		}
		if got := testutil.LedgerCount(t, conn, id); got != 0 {
			t.Errorf("Option %s: expected empty ledger after abort, got %d rows", id, got)
		}
	}
}

// Poll existence is validated before identity signals, so an unknown poll
// answers not-found even when a mandatory signal is also missing.
func TestUnknownPollBeforeIdentitySignals(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	defer conn.Close()

	cfg := testutil.GetTestConfig()
	cfg.Policy = "fingerprint"
	eng := testutil.NewTestEngine(conn, cfg)

	idc := identity.Context{VoterID: "K1", IPHash: "ip-a"} // no fingerprint
	_, err := eng.CastOrChangeVote("no-such-poll", []string{"opt"}, idc)
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for unknown poll, got %v", err)
	}

	// On an existing poll the missing signal still rejects
	poll, options, err := eng.CreatePoll("Pick one", []string{"A", "B"}, models.TypeSingle, false, "owner-1")
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	_, err = eng.CastOrChangeVote(poll.ID, []string{options[0].ID}, idc)
	if !errors.Is(err, identity.ErrMissingFingerprint) {
		t.Fatalf("Expected ErrMissingFingerprint, got %v", err)
	}
}

func assertCounts(t *testing.T, options []models.Option, want map[string]int) {
	t.Helper()
	for _, opt := range options {
		if expected, ok := want[opt.ID]; ok && opt.VoteCount != expected {
			t.Errorf("Option %s: expected count %d, got %d", opt.ID, expected, opt.VoteCount)
		}
	}
}
