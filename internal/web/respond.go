// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package web

import (
	"encoding/json"
	"net/http"

	"github.com/agora-forum/agora/internal/auth"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// MsgInvalidRequest answers bodies that are not the expected JSON.
const MsgInvalidRequest = "Invalid request"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errchkjson // client may disconnect
}

func writeResult(w http.ResponseWriter, result auth.MutationResult) {
	writeJSON(w, result.Code, result)
}

func writeInvalidRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, auth.MutationResult{
		Code:    http.StatusBadRequest,
		Success: false,
		Message: MsgInvalidRequest,
	})
}

func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, auth.MutationResult{
		Code:    http.StatusInternalServerError,
		Success: false,
		Message: auth.MsgInternal,
	})
}

// decode reads a single JSON object from the body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeInvalidRequest(w)
		return false
	}
	return true
}
