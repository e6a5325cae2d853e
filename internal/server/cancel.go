package server

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"ssotoken/pkg/logging"
)

// MethodCancelled is the client notification that abandons a pending request.
const MethodCancelled = "notifications/cancelled"

// requestKeyField carries the JSON-RPC id of a tool call from the
// before-call hook to the tool middleware. It is removed before the
// handler runs.
const requestKeyField = "ssotoken/requestKey"

// pendingCalls tracks the cancel funcs of running tool calls by session
// and request id.
type pendingCalls struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{cancels: make(map[string]context.CancelFunc)}
}

func requestKey(ctx context.Context, id any) string {
	var session string
	if s := mcpserver.ClientSessionFromContext(ctx); s != nil {
		session = s.SessionID()
	}
	return session + "/" + mcp.NewRequestId(id).String()
}

// tag stamps the request with its id so the middleware can find it.
func (p *pendingCalls) tag(ctx context.Context, id any, request *mcp.CallToolRequest) {
	if id == nil {
		return
	}
	if request.Params.Meta == nil {
		request.Params.Meta = &mcp.Meta{}
	}
	if request.Params.Meta.AdditionalFields == nil {
		request.Params.Meta.AdditionalFields = make(map[string]any)
	}
	request.Params.Meta.AdditionalFields[requestKeyField] = requestKey(ctx, id)
}

// middleware gives every tagged tool call a context that a cancellation
// notification for its id can cancel.
func (p *pendingCalls) middleware(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if request.Params.Meta == nil {
			return next(ctx, request)
		}
		key, ok := request.Params.Meta.AdditionalFields[requestKeyField].(string)
		if !ok {
			return next(ctx, request)
		}
		delete(request.Params.Meta.AdditionalFields, requestKeyField)

		ctx, cancel := context.WithCancel(ctx)
		p.mu.Lock()
		p.cancels[key] = cancel
		p.mu.Unlock()

		defer func() {
			p.mu.Lock()
			delete(p.cancels, key)
			p.mu.Unlock()
			cancel()
		}()
		return next(ctx, request)
	}
}

// handleCancelled cancels the tool call named by the notification. Unknown
// or finished ids are ignored.
func (p *pendingCalls) handleCancelled(ctx context.Context, notification mcp.JSONRPCNotification) {
	id, ok := notification.Params.AdditionalFields["requestId"]
	if !ok || id == nil {
		return
	}
	key := requestKey(ctx, id)

	p.mu.Lock()
	cancel, found := p.cancels[key]
	p.mu.Unlock()

	if !found {
		logging.Debug("RPC", "Cancellation for unknown request %v", id)
		return
	}
	logging.Debug("RPC", "Client cancelled request %v", id)
	cancel()
}
