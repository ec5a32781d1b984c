package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agenti/agenti-web/internal/controller"
	"github.com/agenti/agenti-web/internal/domain"
	"github.com/agenti/agenti-web/internal/identity"
	"github.com/agenti/agenti-web/internal/session"
	"github.com/agenti/agenti-web/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	testUser  = "anon_0123456789abcdef0123456789abcdef"
	otherUser = "anon_fedcba9876543210fedcba9876543210"

	testMaxInput = 4 << 10
)

type testServer struct {
	router   http.Handler
	sessions *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sessions := session.NewManager(session.Options{
		Converter:  controller.MockConverter{Delay: 100 * time.Millisecond},
		Uploader:   controller.MockUploader{Delay: 100 * time.Millisecond},
		Policy:     controller.DefaultPolicy(),
		ResetDelay: 200 * time.Millisecond,
	})
	t.Cleanup(sessions.CloseAll)

	catalog := store.NewMemory(domain.SeedAgents, domain.Categories)
	base := NewHandler(catalog, sessions, 10<<20, testMaxInput)

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	NewHealthHandler(catalog, sessions).RegisterHealth(r)
	NewCatalogHandler(base).RegisterRoutes(r)
	NewSessionHandler(base).RegisterRoutes(r)

	return &testServer{router: r, sessions: sessions}
}

func (ts *testServer) do(t *testing.T, method, path, user, sid string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: identity.AnonCookieName, Value: user})
	if sid != "" {
		req.Header.Set(identity.SessionHeaderName, sid)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) open(t *testing.T, agentID int64) string {
	t.Helper()
	body := []byte(`{}`)
	if agentID != 0 {
		body, _ = json.Marshal(map[string]int64{"agent_id": agentID})
	}
	rr := ts.do(t, http.MethodPost, "/api/session", testUser, "", body, "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var snap session.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("open: decode: %v", err)
	}
	if rr.Header().Get(identity.SessionHeaderName) != snap.SessionID {
		t.Fatalf("expected session header %s", snap.SessionID)
	}
	return snap.SessionID
}

func multipartFile(t *testing.T, name string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "ignored"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}

func waitSnapshot(t *testing.T, ts *testServer, sid string, cond func(session.Snapshot) bool) session.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rr := ts.do(t, http.MethodGet, "/api/session", testUser, sid, nil, "")
		var snap session.Snapshot
		if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, last snapshot %+v", snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSession_RequiresSessionID(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/session", testUser, "", nil, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/api/session", testUser, "3f2b8a9e-1c4d-4e5f-9a6b-7c8d9e0f1a2b", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rr.Code)
	}
}

func TestSession_OwnedByOpener(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.open(t, 0)

	rr := ts.do(t, http.MethodGet, "/api/session", otherUser, sid, nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign session, got %d", rr.Code)
	}
}

func TestSession_OpenUnknownAgent(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPost, "/api/session", testUser, "", []byte(`{"agent_id":999}`), "application/json")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSession_RunConvertsAndCopies(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.open(t, domain.DemoAgentID)

	rr := ts.do(t, http.MethodPost, "/api/session/run", testUser, sid, []byte(`{"input":"   "}`), "application/json")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"accepted":false`) {
		t.Fatalf("expected blank input to be refused, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/session/input", testUser, sid, []byte(`{"input":"def f(): pass"}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("input: expected 200, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/session/run", testUser, sid, []byte(`{}`), "application/json")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("run: expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	// A second run while processing is refused.
	rr = ts.do(t, http.MethodPost, "/api/session/run", testUser, sid, []byte(`{}`), "application/json")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"accepted":false`) {
		t.Fatalf("expected re-entrant run to be refused, got %d: %s", rr.Code, rr.Body.String())
	}

	snap := waitSnapshot(t, ts, sid, func(s session.Snapshot) bool { return s.Run.Status == controller.RunDone })
	if snap.Run.Output != controller.CannedOutput {
		t.Fatal("expected canned output")
	}
	if snap.Run.Input != "def f(): pass" {
		t.Fatalf("expected input preserved, got %q", snap.Run.Input)
	}

	// Without a live stream there is nobody to hand the text to.
	rr = ts.do(t, http.MethodPost, "/api/session/copy", testUser, sid, nil, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("copy without stream: expected 409, got %d: %s", rr.Code, rr.Body.String())
	}

	s, ok := ts.sessions.Get(sid)
	if !ok {
		t.Fatal("session vanished")
	}
	updates, unsubscribe := s.Hub.Subscribe()
	defer unsubscribe()

	rr = ts.do(t, http.MethodPost, "/api/session/copy", testUser, sid, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("copy: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var copied map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &copied); err != nil {
		t.Fatal(err)
	}
	if copied["copied"] != true {
		t.Fatalf("unexpected copy response %v", copied)
	}
	if _, ok := copied["text"]; ok {
		t.Fatal("clipboard text must only travel over the stream")
	}
	if msg := nextClipboard(t, updates); msg.Text != controller.CannedOutput {
		t.Fatalf("expected canned output on the stream, got %q", msg.Text)
	}

	rr = ts.do(t, http.MethodPost, "/api/session/clear", testUser, sid, nil, "")
	var cleared controller.RunState
	if err := json.Unmarshal(rr.Body.Bytes(), &cleared); err != nil {
		t.Fatal(err)
	}
	if cleared.Input != "" || cleared.Output != "" || cleared.Status != controller.RunIdle {
		t.Fatalf("expected cleared state, got %+v", cleared)
	}

	rr = ts.do(t, http.MethodPost, "/api/session/copy", testUser, sid, nil, "")
	if !strings.Contains(rr.Body.String(), `"copied":false`) {
		t.Fatalf("expected nothing to copy, got %s", rr.Body.String())
	}
}

func nextClipboard(t *testing.T, updates <-chan session.Message) session.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-updates:
			if msg.Type == session.MessageClipboard {
				return msg
			}
		case <-deadline:
			t.Fatal("timed out waiting for clipboard message")
		}
	}
}

func TestSession_InputBound(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.open(t, domain.DemoAgentID)

	fits, _ := json.Marshal(map[string]string{"input": strings.Repeat("x", testMaxInput)})
	rr := ts.do(t, http.MethodPost, "/api/session/input", testUser, sid, fits, "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("input at the bound: expected 200, got %d", rr.Code)
	}

	tests := []struct {
		name string
		path string
		body []byte
	}{
		{"input over bound", "/api/session/input", mustJSON(t, map[string]string{"input": strings.Repeat("y", testMaxInput+1)})},
		{"run over bound", "/api/session/run", mustJSON(t, map[string]string{"input": strings.Repeat("y", testMaxInput+1)})},
		{"body over encoded limit", "/api/session/input", []byte(`{"input":"` + strings.Repeat("z", int(controller.EncodedInputLimit(testMaxInput))) + `"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, tt.path, testUser, sid, tt.body, "application/json")
			if rr.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("expected 413, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}

	snap := waitSnapshot(t, ts, sid, func(session.Snapshot) bool { return true })
	if len(snap.Run.Input) != testMaxInput || snap.Run.Status != controller.RunIdle {
		t.Fatalf("rejected input must leave the session untouched, got %d bytes, status %s", len(snap.Run.Input), snap.Run.Status)
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestSession_DragDirectives(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.open(t, 0)

	tests := []struct {
		event      string
		wantStatus int
		wantActive bool
	}{
		{"enter", http.StatusOK, true},
		{"over", http.StatusOK, true},
		{"leave", http.StatusOK, false},
		{"sideways", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"event": tt.event})
			rr := ts.do(t, http.MethodPost, "/api/session/drag", testUser, sid, body, "application/json")
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Directives []string               `json:"directives"`
				Upload     controller.UploadState `json:"upload"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Directives) != 2 || resp.Directives[0] != "prevent_default" {
				t.Fatalf("unexpected directives %v", resp.Directives)
			}
			if resp.Upload.DragActive != tt.wantActive {
				t.Fatalf("expected drag_active=%v", tt.wantActive)
			}
		})
	}

	rr := ts.do(t, http.MethodPost, "/api/session/picker", testUser, sid, nil, "")
	if !strings.Contains(rr.Body.String(), "open_picker") {
		t.Fatalf("expected open_picker directive, got %s", rr.Body.String())
	}
}

func TestSession_UploadLifecycle(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.open(t, 0)

	body, ct := multipartFile(t, "script.py", []byte("print('hi')\n"))
	rr := ts.do(t, http.MethodPost, "/api/session/upload?source=drop", testUser, sid, body, ct)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"status":"uploading"`) {
		t.Fatalf("expected uploading state, got %s", rr.Body.String())
	}

	body, ct = multipartFile(t, "other.js", []byte("1"))
	rr = ts.do(t, http.MethodPost, "/api/session/upload", testUser, sid, body, ct)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 while uploading, got %d", rr.Code)
	}

	waitSnapshot(t, ts, sid, func(s session.Snapshot) bool { return s.Upload.Status == controller.UploadComplete })
	waitSnapshot(t, ts, sid, func(s session.Snapshot) bool { return s.Upload.Status == controller.UploadIdle })
}

func TestSession_UploadRejections(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.open(t, 0)

	body, ct := multipartFile(t, "malware.exe", []byte("MZ"))
	rr := ts.do(t, http.MethodPost, "/api/session/upload?source=select", testUser, sid, body, ct)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/session/upload?source=sideways", testUser, sid, body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad source, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/session/upload", testUser, sid, []byte("not multipart"), "text/plain")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart body, got %d", rr.Code)
	}
}

func TestSession_Delete(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.open(t, 0)

	rr := ts.do(t, http.MethodDelete, "/api/session", testUser, sid, nil, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if ts.sessions.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", ts.sessions.Len())
	}
}
