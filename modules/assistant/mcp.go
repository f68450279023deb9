package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPEndpointPath is where the MCP server is mounted.
const MCPEndpointPath = "/mcp"

// Authenticator resolves a session token to the owning account id.
type Authenticator func(ctx context.Context, token string) (string, error)

type ownerKey struct{}

// withOwner stores the authenticated account id in ctx.
func withOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// ownerFrom returns the account id stored by withOwner.
func ownerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}

// NewMCPServer exposes the registry's tools over the Model Context Protocol.
func NewMCPServer(registry *Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"AI To-Do",
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Task tools for the signed-in account. "+
			"Use get-tasks to list tasks, search-tasks to find them by keyword, "+
			"create-task to add one and delete-task to remove one by id."),
	)

	tools := make([]server.ServerTool, 0, len(registry.tools))
	for _, def := range registry.Definitions() {
		name := def.Name
		tools = append(tools, server.ServerTool{
			Tool: def,
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				ownerID, ok := ownerFrom(ctx)
				if !ok {
					return mcp.NewToolResultError("authentication required"), nil
				}
				res := registry.Invoke(ctx, ownerID, ToolCall{Name: name, Args: req.GetArguments()})
				return toCallToolResult(res), nil
			},
		})
	}
	s.AddTools(tools...)
	return s
}

// NewMCPHandler returns a stateless streamable HTTP handler for the registry.
// Requests must carry a session as a Bearer token or in the session cookie.
func NewMCPHandler(registry *Registry, version string, auth Authenticator) http.Handler {
	streamable := server.NewStreamableHTTPServer(NewMCPServer(registry, version),
		server.WithEndpointPath(MCPEndpointPath),
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if ownerID, ok := ownerFrom(r.Context()); ok {
				return withOwner(ctx, ownerID)
			}
			return ctx
		}),
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeUnauthorized(w)
			return
		}
		ownerID, err := auth(r.Context(), token)
		if err != nil || ownerID == "" {
			writeUnauthorized(w)
			return
		}
		streamable.ServeHTTP(w, r.WithContext(withOwner(r.Context(), ownerID)))
	})
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Not authenticated"}`))
}

func toCallToolResult(res ToolResult) *mcp.CallToolResult {
	if res.Failed() {
		return mcp.NewToolResultError(fmt.Sprint(res.Result["error"]))
	}
	b, err := json.MarshalIndent(res.Result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("json marshal: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}
