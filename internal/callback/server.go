// Package callback runs the loopback HTTP server that drives the
// federated (TaipeiPass) login outside a browser embedding.
//
// FLOW:
//  1. GET /auth/taipeipass/login — generate a random state, remember it
//     in a short-lived cookie, redirect the user agent to the identity
//     provider's authorization page.
//  2. The provider redirects back to GET /auth/taipeipass/callback with
//     ?code=&state=.
//  3. The handler verifies the state, then hands the code to the
//     session manager — which owns everything from there, including its
//     fail-open redirect semantics.
package callback

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tuic/dashboard-session/internal/auth"
	"github.com/tuic/dashboard-session/internal/middleware"
	"github.com/tuic/dashboard-session/internal/session"
)

// Server receives the identity provider's redirect on a loopback port.
type Server struct {
	manager  *session.Manager
	provider *auth.TaipeiPassProvider
	logger   *slog.Logger
	http     *http.Server
}

// New builds the server listening on the loopback interface at port.
func New(port int, manager *session.Manager, provider *auth.TaipeiPassProvider, logger *slog.Logger) *Server {
	s := &Server{
		manager:  manager,
		provider: provider,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger(logger))
	r.Get("/auth/taipeipass/login", s.handleLogin)
	r.Get("/auth/taipeipass/callback", s.handleCallback)

	s.http = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: r,
	}
	return s
}

// Handler exposes the router, for tests and embeddings that mount it
// on an existing server.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("callback: serving: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// handleLogin starts the federated flow: state cookie + redirect to the
// identity provider.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewState()

	// The state cookie is single-use and short-lived: long enough for
	// the user to approve, short enough to limit replay.
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// handleCallback verifies the state and forwards the code to the
// session manager.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		s.logger.Warn("taipeipass callback: missing state cookie")
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		s.logger.Warn("taipeipass callback: state mismatch")
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie — single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// The manager owns everything past this point, including the
	// always-redirect-to-dashboard behavior on failure.
	s.manager.LoginByTaipeiPass(r.Context(), r.URL.Query().Get("code"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body>登入完成，請回到儀表板。</body></html>")
}
