package session

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tuic/dashboard-session/internal/api"
	"github.com/tuic/dashboard-session/internal/apperror"
	"github.com/tuic/dashboard-session/internal/auth"
	"github.com/tuic/dashboard-session/internal/store"
)

// LoginByEmail exchanges account/secret for a session via basic auth.
// Bad credentials and network failures propagate unmodified — the UI
// layer owns presenting them.
func (m *Manager) LoginByEmail(ctx context.Context, account, secret string) error {
	resp, err := m.backend.Login(ctx, account, secret)
	if err != nil {
		return err
	}

	m.completeLogin(ctx, resp)
	return nil
}

// LoginByTaipeiPass exchanges a federated authorization code for a
// session, then navigates to the dashboard route.
//
// FAIL OPEN, REDIRECT ANYWAY:
// This flow never returns an error. Whatever happens — empty code,
// network failure, non-2xx exchange — the user still lands on
// /dashboard, with no notification of the failure. That asymmetry with
// LoginByEmail is inherited product behavior and must not be "fixed"
// here; the failure is kept internally (LastFederatedError) so an
// embedding can at least inspect it.
func (m *Manager) LoginByTaipeiPass(ctx context.Context, code string) {
	err := m.exchangeTaipeiPass(ctx, code)
	if err != nil {
		m.logger.Debug("taipeipass login failed; redirecting to dashboard anyway",
			slog.String("error", err.Error()),
		)
	}

	m.mu.Lock()
	m.lastFederatedErr = err
	m.mu.Unlock()

	m.nav.Replace(DashboardPath)
}

// exchangeTaipeiPass is the fallible half of the federated flow,
// separated so its result type can distinguish validation from
// transport failure even though LoginByTaipeiPass swallows both.
func (m *Manager) exchangeTaipeiPass(ctx context.Context, code string) error {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return apperror.ValidationFailed("code", "invalid authentication code")
	}

	// Percent-encode the trimmed code before it goes anywhere near the
	// query string (spaces become %20). The backend decodes transport
	// encoding once and receives exactly this sanitized form.
	sanitized := encodeComponent(trimmed)

	resp, err := m.backend.Callback(ctx, sanitized)
	if err != nil {
		return err
	}

	m.completeLogin(ctx, resp)
	return nil
}

// LastFederatedError reports how the most recent LoginByTaipeiPass
// ended: nil for success, a validation or transport error otherwise.
// Purely diagnostic — no user-visible behavior hangs off it.
func (m *Manager) LastFederatedError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFederatedErr
}

// completeLogin is the single funnel both login flows terminate in.
// Inputs are already validated; this routine never fails. Effects, in
// order: tokens to memory and durable storage, user + fresh edit draft,
// session-established (cache invalidation), full reload, success
// notification.
func (m *Manager) completeLogin(ctx context.Context, resp *api.LoginResponse) {
	m.mu.Lock()
	m.accessKey = resp.Token
	m.mu.Unlock()

	// Storage failures cannot fail the login — the in-memory session is
	// already live. The token just won't survive the next restart.
	if err := m.store.Set(ctx, store.KeyAccessKey, resp.Token); err != nil {
		m.logger.Warn("persisting access key failed", slog.String("error", err.Error()))
	}

	if resp.IssoToken != "" {
		m.mu.Lock()
		m.taipeiPass = resp.IssoToken
		m.mu.Unlock()
		if err := m.store.Set(ctx, store.KeyTaipeiPass, resp.IssoToken); err != nil {
			m.logger.Warn("persisting taipeipass token failed", slog.String("error", err.Error()))
		}
	}

	m.mu.Lock()
	m.user = resp.User
	m.editUser = resp.User.Clone()
	m.mu.Unlock()

	attrs := []any{slog.Int("userID", resp.User.UserID)}
	if exp, ok := auth.TokenExpiry(resp.Token); ok {
		attrs = append(attrs, slog.Time("tokenExpiresAt", exp))
	}
	m.logger.Info("login succeeded", attrs...)

	m.bus.publish(ctx, EventSessionEstablished)
	m.nav.Reload()
	m.notifier.Notify("success", "登入成功")
}

// encodeComponent percent-encodes s the way the browser's
// encodeURIComponent does for the characters that matter here — in
// particular, a space becomes %20, not +.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
