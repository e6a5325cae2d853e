package manager

import (
	"context"
	"time"

	"ssotoken/internal/api"
	"ssotoken/internal/cache"
	"ssotoken/pkg/logging"
)

// stop cancels the entry's timer and any background refresh. Callers hold m.mu.
func (e *managed) stop() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	e.cancel()
}

// schedule arms the next timer for id. Callers hold m.mu.
//
// With auto-refresh on, the token is refreshed refreshWindow before it
// expires. With only change notifications on, an Expired notification is
// sent at expiry.
func (m *Manager) schedule(id api.SsoTokenID, e *managed) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	gen := e.gen

	if e.ctx.Err() != nil {
		e.ctx, e.cancel = context.WithCancel(m.ctx)
	}

	switch {
	case e.settings.AutoRefresh:
		delay := refreshDelay(m.now(), e.expiresAt, e.obtainedAt, m.cfg.RefreshWindow)
		e.timer = time.AfterFunc(delay, func() { m.refreshInBackground(id, gen) })
		logging.Debug("TokenManager", "Refresh of %s scheduled in %s", id, delay.Round(time.Second))

	case e.settings.ChangeNotifications:
		m.armExpiry(id, e, gen)
	}
}

// minRefreshInterval is the shortest time between two refreshes of a token
// this process obtained.
const minRefreshInterval = 30 * time.Second

// refreshDelay returns how long to wait before refreshing a token that
// expires at expiresAt. A token is refreshed window before it expires, or
// at once when already inside the window. Once this process has obtained
// the token (obtainedAt set), the next refresh waits for at least half the
// remaining lifetime and minRefreshInterval, but never past expiry.
// Provider lifetimes at or below the window would otherwise be refreshed
// back to back.
func refreshDelay(now, expiresAt, obtainedAt time.Time, window time.Duration) time.Duration {
	remaining := expiresAt.Sub(now)
	delay := remaining - window
	if !obtainedAt.IsZero() {
		delay = max(delay, remaining/2, minRefreshInterval-now.Sub(obtainedAt))
		if remaining > 0 {
			delay = min(delay, remaining)
		}
	}
	return max(delay, 0)
}

// armExpiry schedules the Expired notification. Callers hold m.mu.
func (m *Manager) armExpiry(id api.SsoTokenID, e *managed, gen uint64) {
	delay := max(e.expiresAt.Sub(m.now()), 0)
	e.timer = time.AfterFunc(delay, func() { m.expire(id, gen) })
}

// current returns the entry for id if gen is still its generation.
func (m *Manager) current(id api.SsoTokenID, gen uint64) (*managed, bool) {
	e, ok := m.registry[id]
	if !ok || e.gen != gen || m.closed {
		return nil, false
	}
	return e, true
}

func (m *Manager) expire(id api.SsoTokenID, gen uint64) {
	m.mu.Lock()
	e, ok := m.current(id, gen)
	notify := ok && e.settings.ChangeNotifications
	if ok {
		e.timer = nil
	}
	m.mu.Unlock()

	if notify {
		logging.Info("TokenManager", "Token %s expired", id)
		m.publish(id, api.SsoTokenExpired)
	}
}

func (m *Manager) refreshInBackground(id api.SsoTokenID, gen uint64) {
	m.mu.Lock()
	e, ok := m.current(id, gen)
	if !ok {
		m.mu.Unlock()
		return
	}
	if _, busy := m.calls[id]; busy {
		// The in-flight attempt reschedules when it completes.
		m.mu.Unlock()
		return
	}
	c := &call{done: make(chan struct{})}
	m.calls[id] = c
	ctx := e.ctx
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	tok, err := m.store.Load(ctx, id)
	if err == nil && tok != nil && tok.Refreshable(m.now()) {
		tok, err = m.refresh(ctx, id, tok)
	} else if err == nil {
		tok, err = nil, errNotRefreshable
	}
	m.finish(ctx, id, c, tok, err)

	m.mu.Lock()
	defer m.mu.Unlock()

	if now, ok := m.registry[id]; !ok || now != e || m.closed {
		return
	}
	// A GetToken that joined this refresh may already have rescheduled.
	stale := e.gen != gen

	if err != nil {
		logging.Warn("TokenManager", "Background refresh of %s failed: %v", id, err)
		if !stale {
			e.timer = nil
			if e.settings.ChangeNotifications {
				m.armExpiry(id, e, gen)
			}
		}
		return
	}

	e.accessToken = tok.AccessToken
	e.expiresAt = tok.ExpiresAt
	e.obtainedAt = m.now()
	if e.settings.ChangeNotifications {
		m.publish(id, api.SsoTokenRefreshed)
	}
	if !stale {
		m.schedule(id, e)
	}
}

// HandleCacheChange reacts to a record of a managed token being changed by
// another process.
func (m *Manager) HandleCacheChange(change cache.Change) {
	m.mu.Lock()
	e, ok := m.registry[change.ID]
	if !ok || m.closed {
		m.mu.Unlock()
		return
	}
	ctx := e.ctx
	m.mu.Unlock()

	tok, err := m.store.Load(ctx, change.ID)
	if err != nil {
		logging.Warn("TokenManager", "Cannot read changed cache record %s: %v", change.ID, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok = m.registry[change.ID]
	if !ok || m.closed {
		return
	}

	if tok == nil {
		logging.Info("TokenManager", "Cache record of %s was removed externally", change.ID)
		e.stop()
		delete(m.registry, change.ID)
		if e.settings.ChangeNotifications {
			m.publish(change.ID, api.SsoTokenInvalidated)
		}
		return
	}

	if tok.AccessToken == e.accessToken {
		return
	}

	logging.Info("TokenManager", "Cache record of %s was rewritten externally", change.ID)
	e.accessToken = tok.AccessToken
	e.expiresAt = tok.ExpiresAt
	e.obtainedAt = m.now()
	if e.settings.ChangeNotifications {
		m.publish(change.ID, api.SsoTokenRefreshed)
	}
	m.schedule(change.ID, e)
}
