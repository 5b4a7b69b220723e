package appauth

import "context"

// Listen attaches the manager to the backend's push-based auth events for
// the app's lifetime and returns the disposer. Call the disposer on
// teardown so listeners do not leak across test runs.
//
// The listener is the sole writer that transitions session/user to nil:
// sign-out and external expiry both land here as events with no user.
func (m *Manager) Listen() (stop func()) {
	sub := m.client.OnAuthStateChange(func(event AuthEvent, session *Session) {
		m.handleAuthEvent(context.Background(), event, session)
	})
	return sub.Unsubscribe
}

func (m *Manager) handleAuthEvent(ctx context.Context, event AuthEvent, session *Session) {
	m.logger.Debug("auth state changed", "event", event, "has_session", session != nil)

	if session != nil && session.User != nil {
		ticket := m.store.Ticket()
		m.store.SetAuth(ticket, session, session.User)

		if err := m.bootstrap.Fetch(ctx, session.User.ID); err != nil {
			m.logger.Error("listener profile fetch failed", "event", event, "error", err)
		}
		return
	}

	ticket := m.store.Ticket()
	m.store.ClearAuth(ticket)

	if event == EventSignedOut {
		m.store.ClearAuthError()
	}
}
