// Package logging provides the process-wide structured logger for ssotoken.
//
// It wraps log/slog with a small set of helpers that tag every entry with a
// subsystem name:
//
//	logging.Init(logging.LevelDebug, logging.FormatText, os.Stderr)
//	logging.Info("TokenManager", "token %s created", id)
//	logging.Error("CacheStore", err, "failed to write %s", path)
//
// Components that want structured attributes use Logger:
//
//	log := logging.Logger("FlowController")
//	log.Debug("state transition", "flow_id", id, "state", state)
//
// Audit emits SECURITY_AUDIT lines for credential writes and deletions. Token
// values must never be logged.
//
// When the RPC server runs over stdio the logger must write to stderr, since
// stdout carries the protocol.
package logging
