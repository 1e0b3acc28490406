package tool

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"agenda/internal/llm"
)

// Function names accepted by OpenAI-compatible providers.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

var ErrNotFound = errors.New("tool not found")

// Registry holds the tools offered to the model, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) error {
	return r.RegisterAll(t)
}

// RegisterAll adds every tool or none of them.
func (r *Registry) RegisterAll(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		name := t.Name()
		if !namePattern.MatchString(name) {
			return fmt.Errorf("invalid tool name %q", name)
		}
		if _, exists := r.tools[name]; exists || seen[name] {
			return fmt.Errorf("tool %s already registered", name)
		}
		seen[name] = true
	}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tools[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(tools, func(a, b Tool) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return tools
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// GetToolDefinitions describes the tools in request form. Order is stable
// so identical registries produce identical requests.
func (r *Registry) GetToolDefinitions() []*llm.ToolDefinition {
	tools := r.List()
	defs := make([]*llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, &llm.ToolDefinition{
			Type: "function",
			Function: &llm.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// GetToolBestPractices gathers usage guidance for the system prompt.
func (r *Registry) GetToolBestPractices() string {
	var practices []string
	for _, t := range r.List() {
		if bp := strings.TrimSpace(t.BestPractices()); bp != "" {
			practices = append(practices, bp)
		}
	}
	if len(practices) == 0 {
		return ""
	}
	return "# Tool Usage Best Practices\n\n" + strings.Join(practices, "\n\n")
}
