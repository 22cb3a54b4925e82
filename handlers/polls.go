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

type PollHandler struct {
	engine *engine.Engine
	cfg    cliparse.Config
}

func NewPollHandler(eng *engine.Engine, cfg cliparse.Config) *PollHandler {
	return &PollHandler{engine: eng, cfg: cfg}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.PollType == "" {
		req.PollType = models.TypeSingle
	}

	idc := middleware.Identity(r, h.cfg)
	poll, _, err := h.engine.CreatePoll(req.Question, req.Options, req.PollType, req.RequiresAccount, requesterKey(idc))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID:   poll.ID,
		ShareURL: h.cfg.BaseURL + "/polls/" + poll.ID,
	})
}

// GetPoll handles GET /polls/{id}
// Returns the poll, its live options with counts, whether this viewer has
// voted, and the ledger-derived stats.
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll id is required")
		return
	}

	idc := middleware.Identity(r, h.cfg)
	snapshot, err := h.engine.Snapshot(pollID, idc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snapshot)
}

// AddOption handles POST /polls/{id}/options
func (h *PollHandler) AddOption(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll id is required")
		return
	}

	var req models.AddOptionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	idc := middleware.Identity(r, h.cfg)
	option, err := h.engine.AddOption(pollID, req.Label, requesterKey(idc))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.AddOptionResponse{Option: option})
}

// RemoveOption handles DELETE /polls/{id}/options/{optionID}
// Options are only ever soft-deleted so historical votes stay intact.
func (h *PollHandler) RemoveOption(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	optionID := r.PathValue("optionID")
	if pollID == "" || optionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll id and option id are required")
		return
	}

	idc := middleware.Identity(r, h.cfg)
	if err := h.engine.RemoveOption(pollID, optionID, requesterKey(idc)); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateQuestion handles PATCH /polls/{id}
func (h *PollHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll id is required")
		return
	}

	var req models.UpdateQuestionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	idc := middleware.Identity(r, h.cfg)
	if err := h.engine.UpdateQuestion(pollID, req.Question, requesterKey(idc)); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
