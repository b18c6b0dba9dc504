package keyhint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/keyhint/kit"
)

// RegisterMCP registers the keyhint tools on an MCP server.
func (n *Navigator) RegisterMCP(srv *mcp.Server) {
	mw := kit.Chain(kit.Logging(n.logger))
	n.registerPagesTool(srv, mw)
	n.registerSessionTool(srv, mw)
	n.registerPressTool(srv, mw)
	n.registerTeardownTool(srv, mw)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var pageIDProp = map[string]any{"type": "string", "description": "Attached page id"}

// decodePage decodes arguments into r and tags the context with the page id.
func decodePage[T interface{ page() string }](req *mcp.CallToolRequest, r T) (*kit.MCPDecodeResult, error) {
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, r); err != nil {
			return nil, err
		}
	}
	id := r.page()
	if id == "" {
		return nil, fmt.Errorf("page_id is required")
	}
	return &kit.MCPDecodeResult{
		Request:   r,
		EnrichCtx: func(ctx context.Context) context.Context { return kit.WithPageID(ctx, id) },
	}, nil
}

// --- pages ---

func (n *Navigator) registerPagesTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "keyhint_pages",
		Description: "List the pages keyhint is attached to.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"pages": n.Pages()}, nil
	}
	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}

// --- session ---

type sessionReq struct {
	PageID   string `json:"page_id"`
	Describe bool   `json:"describe"`
}

func (r *sessionReq) page() string { return r.PageID }

func (n *Navigator) registerSessionTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "keyhint_session",
		Description: "Show the hint session of a page: mode, typed prefix and every hint code with its element.",
		InputSchema: inputSchema(map[string]any{
			"page_id":  pageIDProp,
			"describe": map[string]any{"type": "boolean", "description": "Add a one-line description of each hinted element"},
		}, []string{"page_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionReq)
		return n.Session(ctx, r.PageID, r.Describe)
	}
	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return decodePage(req, &sessionReq{})
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}

// --- press ---

type pressReq struct {
	PageID string `json:"page_id"`
	Key    string `json:"key"`
}

func (r *pressReq) page() string { return r.PageID }

func (n *Navigator) registerPressTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name: "keyhint_press",
		Description: "Type a key into a page as a user would outside any text field: the activation key " +
			"shows hints, hint letters select one, escape cancels, the scroll keys scroll.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"key":     map[string]any{"type": "string", "description": "A single letter, escape or backspace"},
		}, []string{"page_id", "key"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*pressReq)
		if r.Key == "" {
			return nil, fmt.Errorf("key is required")
		}
		return n.Press(ctx, r.PageID, r.Key)
	}
	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return decodePage(req, &pressReq{})
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}

// --- teardown ---

type teardownReq struct {
	PageID string `json:"page_id"`
}

func (r *teardownReq) page() string { return r.PageID }

func (n *Navigator) registerTeardownTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "keyhint_teardown",
		Description: "Remove every hint from a page and cancel any pending activation.",
		InputSchema: inputSchema(map[string]any{"page_id": pageIDProp}, []string{"page_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*teardownReq)
		if err := n.Teardown(ctx, r.PageID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok", "page_id": r.PageID}, nil
	}
	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return decodePage(req, &teardownReq{})
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}
