// Package api holds the types shared by every ssotoken package: the wire
// DTOs of the token manager operations, the TokenChanged notification
// payload, and the error-code model.
//
// The package has no dependencies on other internal packages, so the
// manager, the RPC adapter and the CLI can all exchange values through it
// without import cycles.
//
// # Error model
//
// Every operation reports failures as *Error values carrying an ErrorCode.
// Components deeper in the stack return ordinary wrapped errors; the manager
// converts them at its boundary. CodeOf extracts the code from any error
// chain, mapping expired deadlines to ErrTimeout and anything unclassified to
// ErrUnknown.
//
// Cancellation is not an error kind. A cancelled GetToken resolves with an
// empty result and a nil error.
package api
