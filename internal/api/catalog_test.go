package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agenti/agenti-web/internal/domain"
	"github.com/agenti/agenti-web/internal/store"
)

func TestListAgentsFilters(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{"all", "", len(domain.SeedAgents)},
		{"category all", "?category=All", len(domain.SeedAgents)},
		{"security", "?category=Security", 1},
		{"search", "?q=python", 1},
		{"no match", "?category=Security&q=python", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodGet, "/api/agents"+tt.query, testUser, "", nil, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			var resp struct {
				Agents []domain.AgentSummary `json:"agents"`
				Count  int                   `json:"count"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Count != tt.wantCount || len(resp.Agents) != tt.wantCount {
				t.Fatalf("expected %d agents, got %d", tt.wantCount, resp.Count)
			}
		})
	}
}

func TestGetAgent(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/agents/10", testUser, "", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var agent domain.AgentSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &agent); err != nil {
		t.Fatal(err)
	}
	if agent.ID != domain.DemoAgentID {
		t.Fatalf("expected demo agent, got %+v", agent)
	}

	if rr := ts.do(t, http.MethodGet, "/api/agents/404", testUser, "", nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/agents/abc", testUser, "", nil, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCategoriesAndPlans(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/categories", testUser, "", nil, "")
	var cats struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &cats); err != nil {
		t.Fatal(err)
	}
	if len(cats.Categories) == 0 || cats.Categories[0] != domain.CategoryAll {
		t.Fatalf("unexpected categories %v", cats.Categories)
	}

	rr = ts.do(t, http.MethodGet, "/api/plans", testUser, "", nil, "")
	var plans struct {
		Plans []domain.Plan `json:"plans"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &plans); err != nil {
		t.Fatal(err)
	}
	if len(plans.Plans) != len(domain.Plans) {
		t.Fatalf("expected %d plans, got %d", len(domain.Plans), len(plans.Plans))
	}
}

type downCatalog struct {
	*store.MemoryCatalog
}

func (downCatalog) Ping(context.Context) error { return errors.New("disk on fire") }

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/health", testUser, "", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	h := NewHealthHandler(downCatalog{store.NewMemory(nil, nil)}, nil)
	rr = httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
