// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/livetally/livetally/auth"
	"github.com/livetally/livetally/identity"
	"github.com/livetally/livetally/models"
)

// querier is the read surface shared by *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Engine owns all durable poll, option, and vote state. Every mutation of
// a poll's ledger and cached counts goes through one of its transactional
// operations; operations on different polls proceed independently.
type Engine struct {
	db       *sql.DB
	resolver *identity.Resolver
	pub      Publisher

	// Postgres runs READ COMMITTED, so vote transactions on one poll must
	// take an explicit row lock to serialize. SQLite has no FOR UPDATE and
	// already serializes through its single writer.
	lockOnVote bool
}

func New(db *sql.DB, dbType string, resolver *identity.Resolver, pub Publisher) *Engine {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Engine{db: db, resolver: resolver, pub: pub, lockOnVote: dbType == "postgres"}
}

func (e *Engine) Resolver() *identity.Resolver {
	return e.resolver
}

// CreatePoll validates and stores a new poll with its initial option set.
// ownerKey identifies the creator (account id, or the anonymous voter
// token when no account is present).
func (e *Engine) CreatePoll(question string, optionLabels []string, pollType string, requiresAccount bool, ownerKey string) (models.Poll, []models.Option, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.Poll{}, nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if pollType != models.TypeSingle && pollType != models.TypeMultiple {
		return models.Poll{}, nil, fmt.Errorf("%w: poll_type must be single or multiple", ErrInvalidInput)
	}
	if ownerKey == "" {
		return models.Poll{}, nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}

	labels := make([]string, 0, len(optionLabels))
	for _, l := range optionLabels {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) < 2 {
		return models.Poll{}, nil, fmt.Errorf("%w: at least 2 non-empty options required", ErrInvalidInput)
	}

	pollID, err := auth.GenerateID(16)
	if err != nil {
		return models.Poll{}, nil, err
	}

	tx, err := e.db.Begin()
	if err != nil {
		return models.Poll{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	poll := models.Poll{
		ID:              pollID,
		Question:        question,
		PollType:        pollType,
		AllowMultiple:   pollType == models.TypeMultiple,
		OwnerKey:        ownerKey,
		RequiresAccount: requiresAccount,
		CreatedAt:       now,
	}

	_, err = tx.Exec(`
		INSERT INTO poll (id, question, poll_type, owner_key, requires_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, pollID, question, pollType, ownerKey, boolToInt(requiresAccount), now)
	if err != nil {
		return models.Poll{}, nil, fmt.Errorf("failed to insert poll: %w", err)
	}

	options := make([]models.Option, 0, len(labels))
	for i, label := range labels {
		optionID, err := auth.GenerateID(12)
		if err != nil {
			return models.Poll{}, nil, err
		}
		_, err = tx.Exec(`
			INSERT INTO option (id, poll_id, label, vote_count, deleted, position)
			VALUES ($1, $2, $3, 0, 0, $4)
		`, optionID, pollID, label, i)
		if err != nil {
			return models.Poll{}, nil, fmt.Errorf("failed to insert option: %w", err)
		}
		options = append(options, models.Option{ID: optionID, PollID: pollID, Label: label})
	}

	if err := tx.Commit(); err != nil {
		return models.Poll{}, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("poll created", "poll_id", pollID, "poll_type", pollType, "options", len(options))
	return poll, options, nil
}

// AddOption appends an option to an existing poll. Only the owner may
// extend the option set.
func (e *Engine) AddOption(pollID, label, requesterKey string) (models.Option, error) {
	if label = strings.TrimSpace(label); label == "" {
		return models.Option{}, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}

	poll, err := e.loadPoll(e.db, pollID)
	if err != nil {
		return models.Option{}, err
	}
	if poll.OwnerKey != requesterKey {
		return models.Option{}, fmt.Errorf("%w: only the poll owner can add options", ErrForbidden)
	}

	optionID, err := auth.GenerateID(12)
	if err != nil {
		return models.Option{}, err
	}

	var position int
	err = e.db.QueryRow(`
		SELECT COALESCE(MAX(position), -1) + 1 FROM option WHERE poll_id = $1
	`, pollID).Scan(&position)
	if err != nil {
		return models.Option{}, fmt.Errorf("failed to compute option position: %w", err)
	}

	_, err = e.db.Exec(`
		INSERT INTO option (id, poll_id, label, vote_count, deleted, position)
		VALUES ($1, $2, $3, 0, 0, $4)
	`, optionID, pollID, label, position)
	if err != nil {
		return models.Option{}, fmt.Errorf("failed to insert option: %w", err)
	}

	slog.Info("option added", "poll_id", pollID, "option_id", optionID)

	options, err := e.liveOptions(e.db, pollID)
	if err != nil {
		return models.Option{}, err
	}
	e.pub.OptionsChanged(pollID, options)

	return models.Option{ID: optionID, PollID: pollID, Label: label}, nil
}

// RemoveOption soft-deletes an option. The row stays so historical votes
// keep resolving; the option simply stops accepting new votes and is
// hidden from snapshots.
func (e *Engine) RemoveOption(pollID, optionID, requesterKey string) error {
	poll, err := e.loadPoll(e.db, pollID)
	if err != nil {
		return err
	}
	if poll.OwnerKey != requesterKey {
		return fmt.Errorf("%w: only the poll owner can remove options", ErrForbidden)
	}

	var deleted int
	err = e.db.QueryRow(`
		SELECT deleted FROM option WHERE id = $1 AND poll_id = $2
	`, optionID, pollID).Scan(&deleted)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: option", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query option: %w", err)
	}
	if deleted == 0 {
		_, err = e.db.Exec(`UPDATE option SET deleted = 1 WHERE id = $1`, optionID)
		if err != nil {
			return fmt.Errorf("failed to remove option: %w", err)
		}
		slog.Info("option removed", "poll_id", pollID, "option_id", optionID)
	}

	options, err := e.liveOptions(e.db, pollID)
	if err != nil {
		return err
	}
	e.pub.OptionsChanged(pollID, options)
	return nil
}

// UpdateQuestion edits the poll question. Everything else about a poll is
// immutable after creation.
func (e *Engine) UpdateQuestion(pollID, question, requesterKey string) error {
	if question = strings.TrimSpace(question); question == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	poll, err := e.loadPoll(e.db, pollID)
	if err != nil {
		return err
	}
	if poll.OwnerKey != requesterKey {
		return fmt.Errorf("%w: only the poll owner can edit the question", ErrForbidden)
	}
	_, err = e.db.Exec(`UPDATE poll SET question = $1 WHERE id = $2`, question, pollID)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	e.pub.QuestionChanged(pollID, question)
	return nil
}

// RebuildCounts recomputes every option's cached vote_count from the
// ledger. The cache is derived state; this restores it after any drift.
func (e *Engine) RebuildCounts(pollID string) error {
	if _, err := e.loadPoll(e.db, pollID); err != nil {
		return err
	}
	_, err := e.db.Exec(`
		UPDATE option
		SET vote_count = (SELECT COUNT(*) FROM vote WHERE vote.option_id = option.id)
		WHERE poll_id = $1
	`, pollID)
	if err != nil {
		return fmt.Errorf("failed to rebuild counts: %w", err)
	}
	return nil
}

func (e *Engine) loadPoll(q querier, pollID string) (models.Poll, error) {
	var poll models.Poll
	var requiresAccount int
	err := q.QueryRow(`
		SELECT id, question, poll_type, owner_key, requires_account, created_at
		FROM poll
		WHERE id = $1
	`, pollID).Scan(&poll.ID, &poll.Question, &poll.PollType, &poll.OwnerKey, &requiresAccount, &poll.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Poll{}, fmt.Errorf("%w: poll", ErrNotFound)
	}
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to query poll: %w", err)
	}
	poll.RequiresAccount = requiresAccount != 0
	poll.AllowMultiple = poll.PollType == models.TypeMultiple
	return poll, nil
}

// liveOptions returns the non-deleted options in display order.
func (e *Engine) liveOptions(q querier, pollID string) ([]models.Option, error) {
	rows, err := q.Query(`
		SELECT id, poll_id, label, vote_count
		FROM option
		WHERE poll_id = $1 AND deleted = 0
		ORDER BY position, id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	options := []models.Option{}
	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Label, &opt.VoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

// computeStats derives the poll statistics from the ledger. Unique device
// counts are only meaningful when the policy collects fingerprints.
func (e *Engine) computeStats(q querier, pollID string) (models.Stats, error) {
	var stats models.Stats
	var devices int
	err := q.QueryRow(`
		SELECT COUNT(*),
		       COUNT(DISTINCT voter_key),
		       COUNT(DISTINCT NULLIF(fingerprint, ''))
		FROM vote
		WHERE poll_id = $1
	`, pollID).Scan(&stats.TotalVotes, &stats.UniqueVoters, &devices)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	p := e.resolver.Policy()
	if p.RequireFingerprint || p.CheckFingerprint {
		stats.UniqueDevices = &devices
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
