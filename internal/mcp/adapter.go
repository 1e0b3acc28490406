package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"agenda/internal/tool"
)

// Tool exposes one remote MCP tool through the local tool registry under
// the name "<server>_<tool>".
type Tool struct {
	client *Client
	remote *mcp.Tool
	name   string
}

func newTool(client *Client, remote *mcp.Tool) *Tool {
	return &Tool{
		client: client,
		remote: remote,
		name:   client.Name() + "_" + remote.Name,
	}
}

func (t *Tool) Name() string { return t.name }

func (t *Tool) Description() string {
	desc := t.remote.Description
	if desc == "" {
		desc = "Tool provided by the " + t.client.Name() + " server."
	}
	return desc
}

func (t *Tool) BestPractices() string { return "" }

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Parameters converts the advertised input schema to a plain map.
func (t *Tool) Parameters() map[string]any {
	switch s := t.remote.InputSchema.(type) {
	case nil:
		return emptySchema()
	case map[string]any:
		return s
	}

	raw, err := json.Marshal(t.remote.InputSchema)
	if err != nil {
		return emptySchema()
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || schema == nil {
		return emptySchema()
	}
	return schema
}

// Execute forwards the call. The acting user is not passed on: MCP servers
// run with the service's own identity.
func (t *Tool) Execute(ctx context.Context, _ string, params json.RawMessage) (*tool.Result, error) {
	var args map[string]any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return &tool.Result{Error: fmt.Sprintf("invalid parameters: %v", err)}, nil
		}
	}

	res, err := t.client.CallTool(ctx, t.remote.Name, args)
	if err != nil {
		return &tool.Result{Error: err.Error()}, nil
	}
	if res.IsError {
		msg := formatContent(res.Content)
		if msg == "" {
			msg = "MCP tool returned an error"
		}
		return &tool.Result{Error: msg}, nil
	}

	return &tool.Result{
		Success: true,
		Output:  formatContent(res.Content),
		Data:    map[string]any{"mcp_server": t.client.Name(), "mcp_tool": t.remote.Name},
	}, nil
}

func formatContent(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, item := range content {
		switch c := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, "[image: "+c.MIMEType+"]")
		case *mcp.AudioContent:
			parts = append(parts, "[audio: "+c.MIMEType+"]")
		default:
			data, err := json.Marshal(item)
			if err != nil {
				parts = append(parts, fmt.Sprintf("[%T]", item))
				continue
			}
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}
