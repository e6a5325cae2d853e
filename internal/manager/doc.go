// Package manager is the token lifecycle manager. It answers GetToken from
// the cache or by running an authorization flow, keeps per-token management
// settings, refreshes managed tokens before they expire and announces
// lifecycle changes through an events.Publisher.
//
// All process-wide state lives in a Manager: the settings registry, the
// in-flight table that allows at most one cache-writing attempt per token
// id, and the refresh timers. Close tears the background work down.
package manager
