// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/livetally/livetally/auth"
	"github.com/livetally/livetally/cliparse"
	"github.com/livetally/livetally/identity"
)

// VoterCookieName is the persistent anonymous voter token cookie.
const VoterCookieName = "lt_voter"

const voterCookieMaxAge = 365 * 24 * time.Hour

// WithVoterCookie issues the long-lived anonymous voter token on first
// contact. The cookie is also attached to the inbound request so the rest
// of the pipeline sees a voter id on the very first visit.
func WithVoterCookie(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(VoterCookieName); err != nil {
			cookie := &http.Cookie{
				Name:     VoterCookieName,
				Value:    auth.NewVoterID(),
				Path:     "/",
				MaxAge:   int(voterCookieMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			}
			http.SetCookie(w, cookie)
			r.AddCookie(cookie)
		}
		next(w, r)
	}
}

// Identity assembles the explicit identity context for one request: voter
// cookie, account session, hashed IP, user agent. The fingerprint, when
// present, travels in the vote body and is filled in by the handler.
func Identity(r *http.Request, cfg cliparse.Config) identity.Context {
	idc := identity.Context{
		IPHash:    auth.HashIP(GetClientIP(r), cfg.IPHashSalt),
		UserAgent: r.UserAgent(),
	}

	if c, err := r.Cookie(VoterCookieName); err == nil {
		idc.VoterID = c.Value
	}

	if header := r.Header.Get("Authorization"); header != "" && cfg.SessionSecret != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if accountID, err := auth.ParseAccountSession(parts[1], cfg.SessionSecret); err == nil {
				idc.AccountID = accountID
			}
		}
	}

	return idc
}
