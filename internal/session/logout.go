package session

import (
	"context"
	"log/slog"

	"github.com/tuic/dashboard-session/internal/model"
	"github.com/tuic/dashboard-session/internal/store"
)

// HandleLogout reverses a successful login. Effects, in order:
//
//  1. Remove the primary token from durable storage.
//  2. Clear the user, edit draft, and in-memory primary token.
//  3. Fire session-ended (cache invalidation), before any remote call.
//  4. If a federated session token is held, invalidate it remotely,
//     then remove it from storage and memory.
//  5. Full reload, then the success notification.
//
// The remote invalidation is awaited but local cleanup is NOT gated on
// it: steps 1–3 have already happened when it runs. If the remote call
// fails, its error propagates and steps 5 onward are skipped — the
// federated token stays put so a retry can still invalidate it.
func (m *Manager) HandleLogout(ctx context.Context) error {
	if err := m.store.Delete(ctx, store.KeyAccessKey); err != nil {
		m.logger.Warn("removing stored access key failed", slog.String("error", err.Error()))
	}

	m.mu.Lock()
	m.user = model.User{}
	m.editUser = model.User{}
	m.accessKey = ""
	taipeiPass := m.taipeiPass
	m.mu.Unlock()

	m.bus.publish(ctx, EventSessionEnded)

	if taipeiPass != "" {
		if err := m.backend.Logout(ctx, taipeiPass); err != nil {
			return err
		}
		if err := m.store.Delete(ctx, store.KeyTaipeiPass); err != nil {
			m.logger.Warn("removing stored taipeipass token failed", slog.String("error", err.Error()))
		}
		m.mu.Lock()
		m.taipeiPass = ""
		m.mu.Unlock()
	}

	m.nav.Reload()
	m.notifier.Notify("success", "登出成功")
	return nil
}
