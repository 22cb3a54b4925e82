// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/livetally/livetally/cliparse"
	"github.com/livetally/livetally/engine"
	"github.com/livetally/livetally/middleware"
	"github.com/livetally/livetally/models"
)

type VotingHandler struct {
	engine *engine.Engine
	cfg    cliparse.Config
}

func NewVotingHandler(eng *engine.Engine, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{engine: eng, cfg: cfg}
}

// SubmitVote handles POST /polls/{id}/votes
// Casting and changing a vote are the same request; the engine detects a
// prior vote under this voter key and replaces it atomically.
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll id is required")
		return
	}

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	optionIDs := req.OptionIDs
	if req.OptionID != "" {
		optionIDs = append([]string{req.OptionID}, optionIDs...)
	}

	idc := middleware.Identity(r, h.cfg)
	idc.Fingerprint = req.Fingerprint

	tally, err := h.engine.CastOrChangeVote(pollID, optionIDs, idc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	message := "Vote recorded"
	if tally.Changed {
		message = "Vote changed"
	}

	middleware.JSONResponse(w, http.StatusOK, models.SubmitVoteResponse{
		Options: tally.Options,
		Stats:   tally.Stats,
		Message: message,
	})
}
