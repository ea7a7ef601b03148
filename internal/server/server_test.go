package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jatanrathod13/researcher/config"
	"github.com/jatanrathod13/researcher/internal/archive"
	"github.com/jatanrathod13/researcher/internal/completion"
	"github.com/jatanrathod13/researcher/internal/role"
	"github.com/jatanrathod13/researcher/internal/schema"
	"github.com/jatanrathod13/researcher/internal/session"
	"github.com/jatanrathod13/researcher/internal/telemetry"
	"github.com/jatanrathod13/researcher/internal/workflow"
)

// scriptedService completes every stage immediately with canned output.
type scriptedService struct{}

func (scriptedService) Run(ctx context.Context, req completion.Request) (<-chan completion.Event, error) {
	ch := make(chan completion.Event, 4)
	go func() {
		defer close(ch)
		switch req.Role {
		case role.Planner:
			raw, _ := json.Marshal(schema.ResearchPlan{Topic: "t", SearchQueries: []string{"q"}, FocusAreas: []string{"f"}})
			ch <- completion.Event{Kind: completion.EventStructured, Structured: raw}
		case role.Researcher:
			if req.Facts != nil {
				fact := req.Facts.Record("a fact", "src")
				ch <- completion.Event{Kind: completion.EventCapability, Capability: &completion.CapabilityCall{Name: role.CapabilityRecordFact, Fact: &fact}}
			}
			ch <- completion.Event{Kind: completion.EventRawText, Raw: "summary"}
		case role.Editor:
			raw, _ := json.Marshal(schema.ResearchReport{Title: "Test Report Title", Report: "# body", WordCount: 1000})
			ch <- completion.Event{Kind: completion.EventStructured, Structured: raw}
		}
	}()
	return ch, nil
}

func testServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{
			Watcher: config.WatcherConfig{Window: 2 * time.Second, MaxUpdates: 15},
			Server:  config.ServerConfig{Listen: ":0"},
		}
	}
	tele := telemetry.New(cfg.Telemetry, prometheus.NewRegistry())
	orch := workflow.New(cfg, scriptedService{}, session.NewManager(), archive.NewMemory(10), tele)
	return New(cfg, orch)
}

func do(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func startAndWait(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(s, http.MethodPost, "/api/research", `{"topic":"test topic"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	id := resp["session_id"]
	if id == "" {
		t.Fatalf("missing session_id in %s", rec.Body.String())
	}

	sess, ok := s.orch.Sessions().Get(id)
	if !ok {
		t.Fatalf("started session not found")
	}
	deadline := time.Now().Add(5 * time.Second)
	for !sess.Status().Terminal() {
		if time.Now().After(deadline) {
			t.Fatalf("session never finished, status %s", sess.Status())
		}
		time.Sleep(5 * time.Millisecond)
	}
	return id
}

func TestHealthz(t *testing.T) {
	s := testServer(t, nil)
	rec := do(s, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCreateAndGetResearch(t *testing.T) {
	s := testServer(t, nil)
	id := startAndWait(t, s)

	rec := do(s, http.MethodGet, "/api/research/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.Status != session.StatusComplete {
		t.Fatalf("expected complete, got %s", snap.Status)
	}
	if len(snap.Facts) != 1 || snap.Facts[0].Text != "a fact" {
		t.Fatalf("snapshot must carry facts: %+v", snap.Facts)
	}
	if snap.Result == nil || snap.Result.Kind != schema.ResultReport {
		t.Fatalf("snapshot must carry result union: %+v", snap.Result)
	}
}

func TestCreateResearchRejectsMissingTopic(t *testing.T) {
	s := testServer(t, nil)
	rec := do(s, http.MethodPost, "/api/research", `{"topic":"  "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetResearchUnknownID(t *testing.T) {
	s := testServer(t, nil)
	rec := do(s, http.MethodGet, "/api/research/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReportDownload(t *testing.T) {
	s := testServer(t, nil)
	id := startAndWait(t, s)

	rec := do(s, http.MethodGet, "/api/research/"+id+"/report", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "Test_Report_Title.md") {
		t.Fatalf("unexpected disposition: %q", disposition)
	}
	if rec.Body.String() != "# body" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestReportBeforeCompletionConflicts(t *testing.T) {
	s := testServer(t, nil)
	// a session that never ran has no result
	sess, _ := s.orch.Sessions().Create(context.Background(), "pending")
	rec := do(s, http.MethodGet, "/api/research/"+sess.ID()+"/report", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCancelResearch(t *testing.T) {
	s := testServer(t, nil)
	sess, _ := s.orch.Sessions().Create(context.Background(), "pending")

	rec := do(s, http.MethodDelete, "/api/research/"+sess.ID(), "", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(s, http.MethodDelete, "/api/research/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	s := testServer(t, nil)
	id := startAndWait(t, s)

	rec := do(s, http.MethodGet, "/api/runs?limit=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Runs []session.Snapshot `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding runs: %v", err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].ID != id {
		t.Fatalf("expected the archived run, got %+v", resp.Runs)
	}

	if rec := do(s, http.MethodGet, "/api/runs?limit=zero", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestListExamples(t *testing.T) {
	s := testServer(t, nil)
	rec := do(s, http.MethodGet, "/api/examples", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Examples []string `json:"examples"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding examples: %v", err)
	}
	if len(resp.Examples) != 3 {
		t.Fatalf("expected 3 example topics, got %d", len(resp.Examples))
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{
		Watcher: config.WatcherConfig{Window: 2 * time.Second, MaxUpdates: 15},
		Server:  config.ServerConfig{JWTSecret: "test-secret"},
	}
	s := testServer(t, cfg)

	if rec := do(s, http.MethodGet, "/api/examples", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := SignJWT("user-1", []byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	rec := do(s, http.MethodGet, "/api/examples", "", map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	bad, _ := SignJWT("user-1", []byte("other-secret"), time.Hour)
	if rec := do(s, http.MethodGet, "/api/examples", "", map[string]string{"Authorization": "Bearer " + bad}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong signature, got %d", rec.Code)
	}

	// health and metrics stay public
	if rec := do(s, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz must not require auth, got %d", rec.Code)
	}
}
