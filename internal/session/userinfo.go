package session

import "context"

// UpdateUserInfo commits the edit draft to the backend as a partial
// update, then re-fetches the canonical user and replaces both the user
// and the draft (fresh copy) with the server-confirmed record.
//
// No optimistic update: whatever the draft contained, the state that
// survives is what the backend echoes back. Failures propagate to the
// caller with the draft left untouched.
func (m *Manager) UpdateUserInfo(ctx context.Context) error {
	draft := m.EditDraft()

	if err := m.backend.UpdateMe(ctx, draft); err != nil {
		return err
	}

	user, err := m.backend.Me(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.user = user
	m.editUser = user.Clone()
	m.mu.Unlock()

	return nil
}
