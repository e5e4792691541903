// Package session owns the authenticated-session lifecycle of the
// dashboard client: bootstrap-on-load recovery, the two login flows,
// logout, profile updates, and the derived device profile.
//
// STATE MACHINE OVERVIEW:
//
//	start ── InitialChecks ──┬─ stored token valid ──→ authenticated
//	                         └─ no/stale token ──────→ anonymous
//	anonymous ── LoginByEmail / LoginByTaipeiPass ──→ authenticated (+ reload)
//	authenticated ── HandleLogout ──→ anonymous (+ reload)
//
// One Manager instance lives for the whole application. Everything that
// used to be a global singleton store in the browser original is an
// injected dependency here: the backend client, the durable token
// store, the navigator, and the notification sink. Cross-cutting
// effects on sibling subsystems travel over the event bus (events.go)
// instead of direct calls.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tuic/dashboard-session/internal/api"
	"github.com/tuic/dashboard-session/internal/model"
	"github.com/tuic/dashboard-session/internal/store"
)

// DashboardPath is the route the federated flow always lands on.
const DashboardPath = "/dashboard"

// Backend is the slice of the API client the session core consumes.
// *api.Client satisfies it; tests substitute a stub.
type Backend interface {
	Me(ctx context.Context) (model.User, error)
	Login(ctx context.Context, account, secret string) (*api.LoginResponse, error)
	Callback(ctx context.Context, code string) (*api.LoginResponse, error)
	Logout(ctx context.Context, issoToken string) error
	UpdateMe(ctx context.Context, draft model.User) error
}

// Navigator abstracts page navigation. The browser original used the
// router directly (router.replace, router.go); a Go embedding supplies
// whatever re-initialization its UI layer needs.
type Navigator interface {
	// Replace navigates to path without keeping history.
	Replace(path string)
	// Reload re-initializes the current route so every dependent
	// component sees the new session state.
	Reload()
}

// Notifier receives user-facing notifications.
type Notifier interface {
	Notify(level, message string)
}

// Refresher is the token-refresh extension point. The dashboard backend
// has no refresh tokens today, so the default implementation does
// nothing; a backend that gains them plugs in here.
type Refresher interface {
	Refresh(ctx context.Context, m *Manager) error
}

// NoopRefresher is the default Refresher: callable, no effect.
type NoopRefresher struct{}

func (NoopRefresher) Refresh(context.Context, *Manager) error { return nil }

// Config carries the Manager's dependencies.
type Config struct {
	Backend   Backend
	Store     store.TokenStore
	Navigator Navigator
	Notifier  Notifier
	// Environment probes the device signals at bootstrap time.
	Environment func() model.Environment
	// Refresher defaults to NoopRefresher when nil.
	Refresher Refresher
	Logger    *slog.Logger
}

// Manager is the process-wide session state and its operations.
//
// LOCKING:
// The mutex guards the state fields only. Network calls always run
// outside the lock, and no per-operation single-flight is imposed: two
// concurrent logins interleave last-write-wins, exactly as in the
// original. The mutex is the minimal addition a race-free Go API needs,
// not a serialization of the flows.
type Manager struct {
	backend   Backend
	store     store.TokenStore
	nav       Navigator
	notifier  Notifier
	probe     func() model.Environment
	refresher Refresher
	bus       *Bus
	logger    *slog.Logger

	mu          sync.Mutex
	user        model.User
	editUser    model.User
	accessKey   string
	taipeiPass  string
	profile     model.DeviceProfile
	currentPath string

	// lastFederatedErr records how the most recent federated login
	// ended; the flow itself swallows it (see login.go).
	lastFederatedErr error
}

// New wires a Manager. All dependencies are required except Refresher
// and Logger, which default to NoopRefresher and slog.Default().
func New(cfg Config) *Manager {
	refresher := cfg.Refresher
	if refresher == nil {
		refresher = NoopRefresher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	probe := cfg.Environment
	if probe == nil {
		probe = func() model.Environment { return model.Environment{} }
	}

	return &Manager{
		backend:   cfg.Backend,
		store:     cfg.Store,
		nav:       cfg.Navigator,
		notifier:  cfg.Notifier,
		probe:     probe,
		refresher: refresher,
		bus:       newBus(),
		logger:    logger,
	}
}

// Subscribe registers fn to run when e fires. Handlers run synchronously
// on the goroutine that triggered the transition, in subscription order.
func (m *Manager) Subscribe(e Event, fn func(context.Context)) {
	m.bus.subscribe(e, fn)
}

// ExecuteRefreshTokens invokes the refresh extension point. With the
// default NoopRefresher this is callable with no effect.
func (m *Manager) ExecuteRefreshTokens(ctx context.Context) error {
	return m.refresher.Refresh(ctx, m)
}

// --- state accessors -----------------------------------------------------

// User returns the canonical user record.
func (m *Manager) User() model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// EditDraft returns the current edit draft. The draft is replaced by a
// fresh copy of User on bootstrap, login, and profile update — in-flight
// edits are discarded on any of those transitions.
func (m *Manager) EditDraft() model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editUser
}

// SetEditDraft stages profile edits to be committed by UpdateUserInfo.
// It never touches the canonical User.
func (m *Manager) SetEditDraft(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editUser = u
}

// AccessKey returns the primary token, or "" when anonymous. It is
// empty if and only if User is unauthenticated.
func (m *Manager) AccessKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessKey
}

// TaipeiPass returns the federated session token, or "" when the
// session did not involve the identity provider.
func (m *Manager) TaipeiPass() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taipeiPass
}

// DeviceProfile returns the flags computed at bootstrap.
func (m *Manager) DeviceProfile() model.DeviceProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// SetCurrentPath records the most recent navigation for cross-component
// reference.
func (m *Manager) SetCurrentPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentPath = path
}

// CurrentPath returns the last-known application route.
func (m *Manager) CurrentPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentPath
}
