package session

import (
	"context"
	"log/slog"

	"github.com/tuic/dashboard-session/internal/apperror"
	"github.com/tuic/dashboard-session/internal/device"
	"github.com/tuic/dashboard-session/internal/store"
)

// InitialChecks reconciles the in-memory session with the durable token
// store. Run it exactly once, at application start.
//
// Steps:
//  1. Compute the device profile from the environment probe.
//  2. If a primary token is stored, load it (and the federated token,
//     if present), then fetch the canonical user from the backend and
//     replace the edit draft with a fresh copy.
//  3. If the fetched user has a valid identity, fire session-restored
//     (the viewpoint loader listens).
//  4. Fire bootstrap-completed (contributor attribution listens) —
//     session or not.
//
// A rejected stored token propagates as a stale-session error; the
// token is intentionally NOT cleared here. The embedding application
// decides whether to call HandleLogout or surface a re-login prompt.
func (m *Manager) InitialChecks(ctx context.Context) error {
	profile := device.Profile(m.probe())
	m.mu.Lock()
	m.profile = profile
	m.mu.Unlock()

	accessKey, ok, err := m.store.Get(ctx, store.KeyAccessKey)
	if err != nil {
		return apperror.Storage("reading stored access key", err)
	}

	if ok {
		m.mu.Lock()
		m.accessKey = accessKey
		m.mu.Unlock()

		if taipeiPass, ok, err := m.store.Get(ctx, store.KeyTaipeiPass); err != nil {
			return apperror.Storage("reading stored taipeipass token", err)
		} else if ok {
			m.mu.Lock()
			m.taipeiPass = taipeiPass
			m.mu.Unlock()
		}

		user, err := m.backend.Me(ctx)
		if err != nil {
			return err
		}

		m.mu.Lock()
		m.user = user
		m.editUser = user.Clone()
		restored := user.LoggedIn()
		m.mu.Unlock()

		if restored {
			m.logger.Info("session restored from stored token",
				slog.Int("userID", user.UserID),
				slog.String("account", user.Account),
			)
			m.bus.publish(ctx, EventSessionRestored)
		}
	}

	m.bus.publish(ctx, EventBootstrapCompleted)
	return nil
}
