// Package store provides the agent catalog interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/agenti/agenti-web/internal/domain"
)

// ErrAgentNotFound is returned when no agent has the requested id.
var ErrAgentNotFound = errors.New("agent not found")

// Catalog is the read-only source of marketplace agents.
type Catalog interface {
	// ListAgents returns agents matching filter, ordered by id.
	ListAgents(ctx context.Context, filter domain.AgentFilter) ([]domain.AgentSummary, error)

	// GetAgent retrieves an agent by id. It returns ErrAgentNotFound if absent.
	GetAgent(ctx context.Context, id int64) (*domain.AgentSummary, error)

	// Categories returns the browse categories, starting with "All".
	Categories(ctx context.Context) ([]string, error)

	// Ping verifies the catalog is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
