// Package mcp adds tools served by Model Context Protocol servers to the
// tool registry.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"agenda/internal/config"
	"agenda/internal/logger"
	"agenda/internal/tool"
)

// Dialer builds the client transport for a configured server.
type Dialer func(cfg config.MCPServerConfig) (mcp.Transport, error)

// StdioDialer starts the configured command with ${VAR} expanded in its
// environment.
func StdioDialer(cfg config.MCPServerConfig) (mcp.Transport, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required")
	}
	return commandTransport(cfg.Command, cfg.Args, config.ExpandEnvMap(cfg.Env)), nil
}

// Manager owns the MCP sessions whose tools were registered.
type Manager struct {
	registry *tool.Registry
	dial     Dialer
	log      *logger.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

func NewManager(registry *tool.Registry, dial Dialer, log *logger.Logger) *Manager {
	if dial == nil {
		dial = StdioDialer
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		registry: registry,
		dial:     dial,
		log:      log,
		clients:  make(map[string]*Client),
	}
}

// Initialize connects every enabled server concurrently. A server that
// fails is skipped with a warning; an error is returned only when servers
// were configured and none of them could be used.
func (m *Manager) Initialize(ctx context.Context, cfg config.MCPConfig) error {
	var enabled []config.MCPServerConfig
	seen := make(map[string]bool)
	for _, s := range cfg.Servers {
		if s.Disabled {
			continue
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate MCP server name: %s", s.Name)
		}
		seen[s.Name] = true
		enabled = append(enabled, s)
	}
	if len(enabled) == 0 {
		return nil
	}

	errs := make([]error, len(enabled))
	var wg sync.WaitGroup
	for i, s := range enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.start(ctx, s); err != nil {
				errs[i] = fmt.Errorf("server %s: %w", s.Name, err)
			}
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			m.log.Warn("MCP server unavailable", "error", err)
		}
	}
	if failed == len(enabled) {
		return fmt.Errorf("all MCP servers failed: %w", errors.Join(errs...))
	}
	m.log.Info("MCP servers ready", "servers", len(enabled)-failed, "tools", m.ToolCount())
	return nil
}

func (m *Manager) start(ctx context.Context, cfg config.MCPServerConfig) error {
	transport, err := m.dial(cfg)
	if err != nil {
		return err
	}
	client, err := Connect(ctx, cfg.Name, transport)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tools := make([]tool.Tool, 0, len(client.Tools()))
	for _, remote := range client.Tools() {
		tools = append(tools, newTool(client, remote))
	}
	if err := m.registry.RegisterAll(tools...); err != nil {
		_ = client.Close()
		return err
	}
	m.clients[cfg.Name] = client
	return nil
}

// Servers returns the connected server names, sorted.
func (m *Manager) Servers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) ToolCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.clients {
		n += len(c.Tools())
	}
	return n
}

// Close ends every session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, c := range m.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("server %s: %w", name, err))
		}
	}
	m.clients = make(map[string]*Client)
	return errors.Join(errs...)
}
