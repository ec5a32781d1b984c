//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestErrorBody(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusConflict, "upload already in progress")

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "upload already in progress" {
		t.Errorf("Unexpected error body %v", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
		want    string
	}{
		{name: "empty body", body: "", want: "keep"},
		{name: "valid", body: `{"input":"print(1)"}`, want: "print(1)"},
		{name: "malformed", body: `{"input":`, wantErr: "invalid request body"},
		{name: "too large", body: `{"input":"` + strings.Repeat("x", defaultMaxRequestBodySize) + `"}`, wantErr: "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/session/input", strings.NewReader(tt.body))
			v := inputRequest{Input: "keep"}
			err := decodeJSON(httptest.NewRecorder(), req, &v)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Input != tt.want {
				t.Fatalf("expected input %q, got %q", tt.want, v.Input)
			}
		})
	}
}
