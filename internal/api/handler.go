// Package api provides HTTP handlers for the agenti JSON API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/agenti/agenti-web/internal/session"
	"github.com/agenti/agenti-web/internal/store"
)

// defaultMaxRequestBodySize caps JSON request bodies (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	catalog        store.Catalog
	sessions       *session.Manager
	maxUploadBytes int64
	maxInputBytes  int64
}

// NewHandler creates a new Handler with common dependencies. maxUploadBytes
// bounds how much of an uploaded file is read to measure its size;
// maxInputBytes bounds the source text of a run session.
func NewHandler(catalog store.Catalog, sessions *session.Manager, maxUploadBytes, maxInputBytes int64) *Handler {
	return &Handler{
		catalog:        catalog,
		sessions:       sessions,
		maxUploadBytes: maxUploadBytes,
		maxInputBytes:  maxInputBytes,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return decodeJSONLimit(w, r, v, defaultMaxRequestBodySize)
}

func decodeJSONLimit(w http.ResponseWriter, r *http.Request, v interface{}, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large: %w", err)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeDecodeError answers a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	Error(w, http.StatusBadRequest, err.Error())
}
