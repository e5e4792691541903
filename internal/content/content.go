// Package content is the dashboard-content collaborator the session
// core notifies: it owns the cached public-dashboards list (a derived
// cache that must be recomputed whenever the session changes) and the
// contributor attribution data populated at bootstrap.
//
// The session manager never calls this package by name — it publishes
// lifecycle events, and Wire subscribes the right reactions.
package content

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tuic/dashboard-session/internal/api"
	"github.com/tuic/dashboard-session/internal/session"
)

// Dashboard is one entry in the public-dashboards listing.
type Dashboard struct {
	ID    int    `json:"id"`
	Index string `json:"index"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
}

// backend is the slice of the API client this collaborator consumes.
type backend interface {
	Contributors(ctx context.Context) ([]api.Contributor, error)
}

// Service caches content derived from the current session.
type Service struct {
	backend backend
	logger  *slog.Logger

	mu               sync.Mutex
	publicDashboards []Dashboard
	contributors     []api.Contributor
}

func NewService(b backend, logger *slog.Logger) *Service {
	return &Service{backend: b, logger: logger}
}

// Wire subscribes the service to the session lifecycle:
//   - login and logout invalidate the public-dashboards cache so it is
//     recomputed against the new session's visibility rules
//   - bootstrap completion populates contributors, session or not
func (s *Service) Wire(m *session.Manager) {
	m.Subscribe(session.EventSessionEstablished, func(context.Context) {
		s.ClearPublicDashboards()
	})
	m.Subscribe(session.EventSessionEnded, func(context.Context) {
		s.ClearPublicDashboards()
	})
	m.Subscribe(session.EventBootstrapCompleted, func(ctx context.Context) {
		s.SetContributors(ctx)
	})
}

// PublicDashboards returns the cached listing (nil when invalidated).
func (s *Service) PublicDashboards() []Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicDashboards
}

// SetPublicDashboards caches a fetched listing.
func (s *Service) SetPublicDashboards(list []Dashboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicDashboards = list
}

// ClearPublicDashboards drops the cache. The next listing render must
// re-fetch against the current session.
func (s *Service) ClearPublicDashboards() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicDashboards = nil
}

// SetContributors populates attribution data from the backend. A
// failure is logged and leaves the previous data in place — attribution
// is cosmetic and must never break bootstrap.
func (s *Service) SetContributors(ctx context.Context) {
	list, err := s.backend.Contributors(ctx)
	if err != nil {
		s.logger.Warn("fetching contributors failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.contributors = list
	s.mu.Unlock()
}

// Contributors returns the attribution entries fetched at bootstrap.
func (s *Service) Contributors() []api.Contributor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contributors
}
