// Package app bootstraps ssotoken: it loads configuration, initializes
// logging, wires the token manager to its collaborators and runs the RPC
// server.
//
// # Bootstrap
//
// NewApplication performs the startup sequence shared by every command:
//
//  1. Load configuration (defaults, config.yaml, .env, SSOTOKEN_* variables)
//  2. Initialize logging to stderr
//  3. Create the cache store, event broker, flow controller, shared config
//     store and token manager
//
// Commands then either call the manager directly (the token and profile
// commands) or hand the process over to Serve.
//
// # Serve
//
// Serve runs the MCP stdio server, forwards lifecycle events to connected
// clients and, when enabled, watches the cache directory for records changed
// by other processes. It reports readiness to systemd once the server is
// accepting requests and returns when stdin is closed or the context is
// cancelled.
//
// # Authorization pages
//
// Interactive logins need someone to open the authorize URL. Callers
// register handlers with OnAuthorize: the serve command notifies the RPC
// client (and optionally opens a local browser), the CLI prints the URL and
// opens the browser.
//
// Example:
//
//	application, err := app.NewApplication(app.NewConfig(false, ""))
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	return application.Serve(ctx, os.Stdin, os.Stdout)
package app
