// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kudos-app/kudos/internal/auth"
)

// WriteResult transmits an auth result: the cookie instruction first,
// then either a redirect or the JSON payload.
func WriteResult(w http.ResponseWriter, r *http.Request, result auth.Result) {
	if result.Cookie != nil {
		http.SetCookie(w, result.Cookie)
	}

	switch result.Kind {
	case auth.ResultRedirect:
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, result.Location, http.StatusFound)
	case auth.ResultValidationFailure, auth.ResultError:
		status := result.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, result.Body)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeJSON writes v with status. Encoding errors after the header is
// sent can only be logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}
