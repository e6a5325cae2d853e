package server

import (
	"context"

	"ssotoken/internal/api"
	"ssotoken/pkg/logging"
)

// Forward sends every event received on events as a TokenChanged
// notification until ctx is done or events is closed.
func (s *Server) Forward(ctx context.Context, events <-chan api.SsoTokenChangedParams) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			logging.Debug("RPC", "Notifying %s for %s", e.Kind, e.SsoTokenID)
			s.notifier.SendNotificationToAllClients(MethodTokenChanged, map[string]any{
				"kind":       e.Kind,
				"ssoTokenId": e.SsoTokenID,
			})
		}
	}
}

// NotifyAuthorize asks clients to open the authorization page of a flow.
// It has the signature of sso.AuthorizeFunc.
func (s *Server) NotifyAuthorize(_ context.Context, id api.SsoTokenID, url string) {
	logging.Info("RPC", "Requesting authorization for %s", id)
	s.notifier.SendNotificationToAllClients(MethodAuthorize, map[string]any{
		"ssoTokenId": id,
		"url":        url,
	})
}
