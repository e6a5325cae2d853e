package manager

import (
	"context"

	"ssotoken/internal/api"
	"ssotoken/internal/cache"
)

// call is one in-flight attempt to produce a token for an id. Only the
// leader writes the cache; joiners wait for done and read the outcome.
type call struct {
	done chan struct{}

	// interactive is set when the leader may run an authorization flow.
	interactive bool

	tok *cache.Token
	err error
}

type outcome int

const (
	// joined means another caller produced the result.
	joined outcome = iota
	// skipped means the caller chose not to wait for an interactive leader.
	skipped
	// retry means a background leader ended without a token.
	retry
)

// lead registers a new call for id, or returns the existing one.
func (m *Manager) lead(id api.SsoTokenID, interactive bool) (*call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.calls[id]; ok {
		return c, false
	}
	c := &call{done: make(chan struct{}), interactive: interactive}
	m.calls[id] = c
	return c, true
}

// finish publishes the outcome of a call led by this caller. A leader
// cancelled by its own caller leaves joiners with an empty result.
func (m *Manager) finish(ctx context.Context, id api.SsoTokenID, c *call, tok *cache.Token, err error) {
	m.mu.Lock()
	delete(m.calls, id)
	m.mu.Unlock()

	if err != nil && ctx.Err() == context.Canceled {
		err = nil
	}
	c.tok, c.err = tok, err
	close(c.done)
}

// wait blocks until c is done or ctx ends.
func wait(ctx context.Context, c *call, allowLogin bool) (*cache.Token, outcome, error) {
	if c.interactive && !allowLogin {
		return nil, skipped, nil
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, joined, ctx.Err()
	}
	if c.tok == nil && !c.interactive {
		return nil, retry, nil
	}
	return c.tok, joined, c.err
}
