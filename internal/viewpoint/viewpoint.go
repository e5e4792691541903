// Package viewpoint is the map collaborator: it loads the user's saved
// map viewports once the session core confirms a restored identity.
package viewpoint

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tuic/dashboard-session/internal/api"
	"github.com/tuic/dashboard-session/internal/session"
)

type backend interface {
	ViewPoints(ctx context.Context) ([]api.ViewPoint, error)
}

// Service holds the current user's saved viewpoints.
type Service struct {
	backend backend
	logger  *slog.Logger

	mu         sync.Mutex
	viewPoints []api.ViewPoint
}

func NewService(b backend, logger *slog.Logger) *Service {
	return &Service{backend: b, logger: logger}
}

// Wire starts viewpoint loading whenever a stored session is restored
// at bootstrap. Logins don't need a subscription: the full reload that
// follows login re-runs bootstrap anyway.
func (s *Service) Wire(m *session.Manager) {
	m.Subscribe(session.EventSessionRestored, func(ctx context.Context) {
		s.Fetch(ctx)
	})
}

// Fetch loads the saved viewpoints. A failure is logged and keeps the
// previous data — the map falls back to its default viewport.
func (s *Service) Fetch(ctx context.Context) {
	list, err := s.backend.ViewPoints(ctx)
	if err != nil {
		s.logger.Warn("fetching viewpoints failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.viewPoints = list
	s.mu.Unlock()
}

// ViewPoints returns the loaded viewpoints (nil before Fetch succeeds).
func (s *Service) ViewPoints() []api.ViewPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewPoints
}
