// Package server exposes the token manager operations as MCP tools and
// forwards lifecycle notifications to connected clients.
//
// # Tools
//
// Each tool corresponds to one token manager operation. Arguments and
// results are the JSON forms of the internal/api types.
//
//	get_sso_token                 aws/credentials/token/get
//	invalidate_sso_token          aws/credentials/token/invalidate
//	update_sso_token_management   aws/credentials/token/management/update
//	list_profiles                 aws/credentials/profile/list
//	update_profile                aws/credentials/profile/update
//
// A failed operation is reported as a tool error whose text is the JSON
// object {"errorCode": ..., "message": ...}.
//
// # Notifications
//
// aws/credentials/token/changed carries api.SsoTokenChangedParams and is
// sent to every connected client. aws/credentials/token/authorize carries
// api.AuthorizeParams and asks the client to open the authorization page.
//
// A client abandons a pending tool call with notifications/cancelled
// {"requestId": ...}. The call's context is cancelled, so a get_sso_token
// waiting on a login releases the callback listener and returns an empty
// result.
//
// The server speaks the stdio transport: requests are read from stdin and
// responses and notifications written to stdout. All logging must go to
// stderr while it runs.
package server
