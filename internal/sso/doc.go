// Package sso implements the interactive side of SSO token acquisition:
// deriving token identifiers, PKCE material, the loopback redirect listener,
// the SSO-OIDC exchange client and the authorization flow state machine that
// ties them together.
//
// A flow for one token identifier runs through these states:
//
//	Idle -> ClientRegistered -> ListenerBound -> AwaitingRedirect -> ExchangingCode -> Complete
//
// and ends in Failed or Cancelled from any of them. The redirect listener
// binds a fixed loopback address, so the Controller serializes flows with a
// process-wide semaphore and releases the port on every exit path.
package sso
