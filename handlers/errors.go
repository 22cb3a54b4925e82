// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/livetally/livetally/engine"
	"github.com/livetally/livetally/identity"
	"github.com/livetally/livetally/middleware"
)

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// Domain denials surface their reason string; storage faults are logged
// and reported opaquely.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, identity.ErrMissingFingerprint),
		errors.Is(err, identity.ErrNoIdentity):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrMissingAccount):
		middleware.ErrorResponse(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, engine.ErrForbidden),
		errors.Is(err, identity.ErrAlreadyVoted):
		middleware.ErrorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrRateLimited):
		middleware.ErrorResponse(w, http.StatusTooManyRequests, err.Error())
	default:
		slog.Error("storage failure", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
	}
}

// requesterKey is the identity used for owner-gated operations: the
// account id when present, otherwise the anonymous voter token.
func requesterKey(idc identity.Context) string {
	if idc.AccountID != "" {
		return idc.AccountID
	}
	return idc.VoterID
}
