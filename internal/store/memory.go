package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/agenti/agenti-web/internal/domain"
)

// MemoryCatalog serves a fixed agent list from memory.
type MemoryCatalog struct {
	agents     []domain.AgentSummary
	categories []string
}

// NewMemory creates a catalog over a copy of agents.
func NewMemory(agents []domain.AgentSummary, categories []string) *MemoryCatalog {
	a := append([]domain.AgentSummary(nil), agents...)
	sort.Slice(a, func(i, j int) bool { return a[i].ID < a[j].ID })
	return &MemoryCatalog{
		agents:     a,
		categories: append([]string(nil), categories...),
	}
}

// ListAgents implements Catalog.
func (m *MemoryCatalog) ListAgents(ctx context.Context, filter domain.AgentFilter) ([]domain.AgentSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.AgentSummary{}
	for _, a := range m.agents {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// GetAgent implements Catalog.
func (m *MemoryCatalog) GetAgent(ctx context.Context, id int64) (*domain.AgentSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, a := range m.agents {
		if a.ID == id {
			agent := a
			return &agent, nil
		}
	}
	return nil, fmt.Errorf("get agent %d: %w", id, ErrAgentNotFound)
}

// Categories implements Catalog.
func (m *MemoryCatalog) Categories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), m.categories...), nil
}

// Ping implements Catalog.
func (m *MemoryCatalog) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Catalog.
func (m *MemoryCatalog) Close() error { return nil }
