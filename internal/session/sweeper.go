package session

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs a background goroutine that periodically closes sessions
// idle for longer than ttl. Browsers that vanish without closing their socket
// would otherwise keep their controllers alive.
func StartSweeper(ctx context.Context, m *Manager, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(m, ttl)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(m *Manager, ttl time.Duration) int {
	expired := m.Expired(ttl)
	if len(expired) == 0 {
		return 0
	}

	slog.Info("Session sweeper found expired sessions", "count", len(expired))
	for _, s := range expired {
		m.Close(s.ID)
	}
	return len(expired)
}
