package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var implementation = &mcp.Implementation{Name: "agenda", Version: "1.0.0"}

// Client is a connected MCP session together with the tools the server
// advertised at connect time.
type Client struct {
	name    string
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

// Connect opens a session over transport and lists the server's tools.
func Connect(ctx context.Context, name string, transport mcp.Transport) (*Client, error) {
	session, err := mcp.NewClient(implementation, nil).Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to MCP server: %w", err)
	}

	var tools []*mcp.Tool
	for t, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return nil, fmt.Errorf("list tools: %w", err)
		}
		tools = append(tools, t)
	}

	return &Client{name: name, session: session, tools: tools}, nil
}

// commandTransport runs the server as a child process speaking stdio.
func commandTransport(command string, args []string, env map[string]string) mcp.Transport {
	cmd := exec.Command(command, args...)
	if len(env) > 0 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		cmd.Env = cmd.Environ()
		for _, k := range keys {
			cmd.Env = append(cmd.Env, k+"="+env[k])
		}
	}
	return &mcp.CommandTransport{Command: cmd}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Tools() []*mcp.Tool { return c.tools }

func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}
	return res, nil
}

func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}
