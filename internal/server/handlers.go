package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"ssotoken/internal/api"
	"ssotoken/pkg/logging"
)

// Tool names.
const (
	ToolGetToken              = "get_sso_token"
	ToolInvalidateToken       = "invalidate_sso_token"
	ToolUpdateTokenManagement = "update_sso_token_management"
	ToolListProfiles          = "list_profiles"
	ToolUpdateProfile         = "update_profile"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolGetToken,
		mcp.WithDescription("Return an SSO access token for an identity source, logging in if needed"),
		mcp.WithObject("source",
			mcp.Required(),
			mcp.Description(`Identity source: {"kind": "AwsBuilderId"|"IamIdentityCenter", "clientName", "issuerUrl", "region"}`),
		),
		mcp.WithArray("scopes",
			mcp.Description("Scopes to register; defaults to the configured scopes"),
			mcp.WithStringItems(),
		),
		mcp.WithObject("options",
			mcp.Description("autoRefresh, changeNotifications and loginOnInvalidToken, all default true"),
		),
	), s.handleGetToken)

	s.mcp.AddTool(mcp.NewTool(ToolInvalidateToken,
		mcp.WithDescription("Delete a cached SSO token and stop managing it"),
		mcp.WithString("ssoTokenId", mcp.Required(), mcp.Description("Token id returned by get_sso_token")),
	), s.handleInvalidateToken)

	s.mcp.AddTool(mcp.NewTool(ToolUpdateTokenManagement,
		mcp.WithDescription("Change auto-refresh and change notifications of a token"),
		mcp.WithString("ssoTokenId", mcp.Required(), mcp.Description("Token id returned by get_sso_token")),
		mcp.WithBoolean("autoRefresh", mcp.Description("Refresh the token before it expires")),
		mcp.WithBoolean("changeNotifications", mcp.Description("Send token changed notifications")),
	), s.handleUpdateTokenManagement)

	s.mcp.AddTool(mcp.NewTool(ToolListProfiles,
		mcp.WithDescription("List SSO token profiles and sessions of the shared AWS config file"),
	), s.handleListProfiles)

	s.mcp.AddTool(mcp.NewTool(ToolUpdateProfile,
		mcp.WithDescription("Create or update an SSO token profile and its sso-session"),
		mcp.WithObject("profile", mcp.Required(), mcp.Description(`{"kind": "SsoToken", "name", "region", "ssoSessionName"}`)),
		mcp.WithObject("ssoSession", mcp.Description(`{"name", "ssoStartUrl", "ssoRegion", "ssoRegistrationScopes"}`)),
		mcp.WithObject("options", mcp.Description("createNonexistentProfile, createNonexistentSsoSession, updateSharedSsoSession")),
	), s.handleUpdateProfile)
}

func (s *Server) handleGetToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params api.GetSsoTokenParams
	if err := request.BindArguments(&params); err != nil {
		return invalidArguments(err), nil
	}
	res, err := s.tokens.GetToken(ctx, params)
	return respond(ToolGetToken, res, err)
}

func (s *Server) handleInvalidateToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params api.InvalidateSsoTokenParams
	if err := request.BindArguments(&params); err != nil {
		return invalidArguments(err), nil
	}
	res, err := s.tokens.InvalidateToken(ctx, params)
	return respond(ToolInvalidateToken, res, err)
}

func (s *Server) handleUpdateTokenManagement(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params api.UpdateSsoTokenManagementParams
	if err := request.BindArguments(&params); err != nil {
		return invalidArguments(err), nil
	}
	res, err := s.tokens.UpdateTokenManagement(ctx, params)
	return respond(ToolUpdateTokenManagement, res, err)
}

func (s *Server) handleListProfiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.profiles.List(ctx)
	return respond(ToolListProfiles, res, err)
}

func (s *Server) handleUpdateProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params api.UpdateProfileParams
	if err := request.BindArguments(&params); err != nil {
		return invalidArguments(err), nil
	}
	if err := s.profiles.Update(ctx, params); err != nil {
		return respond(ToolUpdateProfile, nil, err)
	}
	return respond(ToolUpdateProfile, &api.UpdateProfileResult{}, nil)
}

// respond converts an operation outcome to a tool result.
func respond(tool string, result any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		logging.Debug("RPC", "%s failed: %v", tool, err)
		return toolError(api.PayloadOf(err)), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return toolError(api.ErrorPayload{
			ErrorCode: api.ErrUnknown,
			Message:   fmt.Sprintf("cannot encode result: %v", err),
		}), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func invalidArguments(err error) *mcp.CallToolResult {
	return toolError(api.ErrorPayload{
		ErrorCode: api.ErrUnknown,
		Message:   fmt.Sprintf("invalid arguments: %v", err),
	})
}

func toolError(p api.ErrorPayload) *mcp.CallToolResult {
	data, err := json.Marshal(p)
	if err != nil {
		return mcp.NewToolResultError(p.Message)
	}
	return mcp.NewToolResultError(string(data))
}
