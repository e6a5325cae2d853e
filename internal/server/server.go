package server

import (
	"context"
	"io"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"ssotoken/internal/api"
	"ssotoken/pkg/logging"
)

// Method names of server-to-client notifications.
const (
	MethodTokenChanged = "aws/credentials/token/changed"
	MethodAuthorize    = "aws/credentials/token/authorize"
)

// TokenManager is implemented by manager.Manager.
type TokenManager interface {
	GetToken(ctx context.Context, params api.GetSsoTokenParams) (*api.GetSsoTokenResult, error)
	InvalidateToken(ctx context.Context, params api.InvalidateSsoTokenParams) (*api.InvalidateSsoTokenResult, error)
	UpdateTokenManagement(ctx context.Context, params api.UpdateSsoTokenManagementParams) (*api.UpdateSsoTokenManagementResult, error)
}

// ProfileStore is implemented by sharedconfig.Store.
type ProfileStore interface {
	List(ctx context.Context) (*api.ListProfilesResult, error)
	Update(ctx context.Context, params api.UpdateProfileParams) error
}

// Notifier delivers notifications to connected clients.
type Notifier interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// Config configures a Server.
type Config struct {
	Name    string
	Version string

	Tokens   TokenManager
	Profiles ProfileStore

	// Notifier overrides delivery of notifications. Defaults to the MCP
	// server itself.
	Notifier Notifier
}

// Server is the RPC adapter in front of the token manager.
type Server struct {
	mcp      *mcpserver.MCPServer
	tokens   TokenManager
	profiles ProfileStore
	notifier Notifier
	pending  *pendingCalls
}

// New creates a Server and registers its tools. Each tool call runs under a
// context that the client can cancel with notifications/cancelled.
func New(cfg Config) *Server {
	pending := newPendingCalls()
	hooks := &mcpserver.Hooks{}
	hooks.AddBeforeCallTool(pending.tag)

	s := &Server{
		mcp: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
			mcpserver.WithHooks(hooks),
			mcpserver.WithToolHandlerMiddleware(pending.middleware),
		),
		tokens:   cfg.Tokens,
		profiles: cfg.Profiles,
		notifier: cfg.Notifier,
		pending:  pending,
	}
	if s.notifier == nil {
		s.notifier = s.mcp
	}
	s.mcp.AddNotificationHandler(MethodCancelled, pending.handleCancelled)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// Serve speaks the stdio transport on in and out until ctx is cancelled or
// in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(logging.Logger("RPC").Handler(), slog.LevelError))

	logging.Info("RPC", "Serving token manager over stdio")
	return stdio.Listen(ctx, in, out)
}
