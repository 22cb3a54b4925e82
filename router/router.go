// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/livetally/livetally/cliparse"
	"github.com/livetally/livetally/engine"
	"github.com/livetally/livetally/handlers"
	"github.com/livetally/livetally/middleware"
	"github.com/livetally/livetally/sse"
)

func NewRouter(eng *engine.Engine, broker *sse.Broker, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	pollHandler := handlers.NewPollHandler(eng, cfg)
	votingHandler := handlers.NewVotingHandler(eng, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithVoterCookie(h))
	}

	// Poll lifecycle and option management
	mux.HandleFunc("POST /polls", wrap(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls/{id}", wrap(pollHandler.GetPoll))
	mux.HandleFunc("PATCH /polls/{id}", wrap(pollHandler.UpdateQuestion))
	mux.HandleFunc("POST /polls/{id}/options", wrap(pollHandler.AddOption))
	mux.HandleFunc("DELETE /polls/{id}/options/{optionID}", wrap(pollHandler.RemoveOption))

	// Voting
	mux.HandleFunc("POST /polls/{id}/votes", wrap(votingHandler.SubmitVote))

	// Live updates (no logging wrapper: streams are long-lived)
	mux.HandleFunc("GET /polls/{id}/live", broker.ServeHTTP)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("livetally API v1"))
	})

	return mux
}
