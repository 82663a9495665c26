package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lonestarx1/gogrid/pkg/trace"
)

// ServerInfo summarizes one connected server for introspection: its
// transport kind and the tools it advertises, both under their qualified
// (namespaced) and original names.
type ServerInfo struct {
	Name      string
	Transport string // "stdio" or "sse"
	Tools     []ToolInfo
}

// ToolInfo names one tool as seen from both sides of the namespacing.
type ToolInfo struct {
	QualifiedName string
	OriginalName  string
	Description   string
}

type connection struct {
	transport Transport
	kind      string
	tools     map[string]*Tool // keyed by original (un-namespaced) tool name
}

// ToolClientManager maintains live connections to zero or more named
// external tool servers and exposes their tools as a single flat,
// namespaced catalog. connect/disconnect are expected to be infrequent and
// are serialized by mu; executeTool only needs to read the connection map
// and is safe to call concurrently from many task agents at once.
type ToolClientManager struct {
	mu    sync.RWMutex
	conns map[string]*connection

	// Injected is an optional per-qualified-tool-name map of fixed
	// parameters merged into every call to that tool, hidden from its
	// exposed schema. Populated by callers (e.g. skill-level tool
	// injection config) before Connect is called for the owning server.
	Injected map[string]map[string]any

	tracer trace.Tracer
}

// NewToolClientManager returns an empty manager ready to Connect servers.
// tracer may be nil, defaulting to trace.Noop; it is handed to every Tool
// converted from a connected server so mcp.tool.call spans are recorded
// under the same tracer as the connection that produced them.
func NewToolClientManager(tracer trace.Tracer) *ToolClientManager {
	if tracer == nil {
		tracer = trace.Noop{}
	}
	return &ToolClientManager{conns: make(map[string]*connection), tracer: tracer}
}

// Connect establishes a session with one server, lists and caches its
// tools, and replaces any existing connection of the same name (closing
// the old one first). The transport variant is chosen by which of
// cfg.Command / cfg.URL is set.
func (m *ToolClientManager) Connect(ctx context.Context, cfg ServerConfig) error {
	ctx, span := m.tracer.StartSpan(ctx, "mcp.server.connect")
	span.SetAttribute("mcp.server", cfg.Name)
	defer m.tracer.EndSpan(span)

	var transport Transport
	var kind string
	var err error

	switch {
	case cfg.Command != "":
		transport, err = connectStdio(cfg)
		kind = "stdio"
	case cfg.URL != "":
		transport, err = connectSSE(cfg)
		kind = "sse"
	default:
		err := fmt.Errorf("mcp: server %q: neither command nor url is set", cfg.Name)
		span.SetError(err)
		return err
	}
	if err != nil {
		wrapped := fmt.Errorf("mcp: connect %q: %w", cfg.Name, err)
		span.SetError(wrapped)
		return wrapped
	}

	descriptors, err := transport.ListTools(ctx)
	if err != nil {
		_ = transport.Close()
		wrapped := fmt.Errorf("mcp: list tools for %q: %w", cfg.Name, err)
		span.SetError(wrapped)
		return wrapped
	}

	tools := make(map[string]*Tool, len(descriptors))
	for _, d := range descriptors {
		d := d
		caller := func(ctx context.Context, args map[string]any) (any, error) {
			return transport.Call(ctx, d.Name, args)
		}
		injected := m.injectedFor(cfg.Name + "/" + d.Name)
		tool, err := NewTool(cfg.Name, d.Name, d.Description, d.InputSchema, injected, caller, m.tracer)
		if err != nil {
			_ = transport.Close()
			wrapped := fmt.Errorf("mcp: convert tool %s/%s: %w", cfg.Name, d.Name, err)
			span.SetError(wrapped)
			return wrapped
		}
		tools[d.Name] = tool
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.conns[cfg.Name]; ok {
		_ = old.transport.Close()
	}
	m.conns[cfg.Name] = &connection{transport: transport, kind: kind, tools: tools}
	return nil
}

func (m *ToolClientManager) injectedFor(qualifiedName string) map[string]any {
	if m.Injected == nil {
		return nil
	}
	return m.Injected[qualifiedName]
}

// Initialize connects all given servers in parallel. A per-server failure
// invokes onError (if non-nil) but never aborts the remaining connections;
// partial success is the normal case.
func (m *ToolClientManager) Initialize(ctx context.Context, configs []ServerConfig, onError func(name string, err error)) {
	var wg sync.WaitGroup
	for _, cfg := range configs {
		cfg := cfg
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Connect(ctx, cfg); err != nil && onError != nil {
				onError(cfg.Name, err)
			}
		}()
	}
	wg.Wait()
}

// ListTools returns the flat, namespaced catalog across every connected
// server.
func (m *ToolClientManager) ListTools() []*Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Tool
	for _, c := range m.conns {
		for _, t := range c.tools {
			out = append(out, t)
		}
	}
	return out
}

// GetServerInfos reports, per connected server, its transport kind and
// tool list under both qualified and original names.
func (m *ToolClientManager) GetServerInfos() []ServerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]ServerInfo, 0, len(m.conns))
	for name, c := range m.conns {
		tools := make([]ToolInfo, 0, len(c.tools))
		for _, t := range c.tools {
			tools = append(tools, ToolInfo{
				QualifiedName: t.QualifiedName(),
				OriginalName:  t.Name,
				Description:   t.Description,
			})
		}
		infos = append(infos, ServerInfo{Name: name, Transport: c.kind, Tools: tools})
	}
	return infos
}

// ExecuteTool routes a call by its qualified name (<server>/<tool>) to the
// owning connection's converted Tool. Routing failures (unknown server,
// unknown tool) are returned as a Go error, distinct from the Result the
// tool call itself produces on success or on a validation/remote failure.
func (m *ToolClientManager) ExecuteTool(ctx context.Context, qualifiedName string, args map[string]any) (Result, error) {
	server, toolName, ok := strings.Cut(qualifiedName, "/")
	if !ok {
		return Result{}, fmt.Errorf("mcp: %q is not a qualified tool name (want <server>/<tool>)", qualifiedName)
	}

	m.mu.RLock()
	conn, ok := m.conns[server]
	m.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("mcp: no server connected with name %q", server)
	}

	tool, ok := conn.tools[toolName]
	if !ok {
		return Result{}, fmt.Errorf("mcp: server %q has no tool %q", server, toolName)
	}

	return tool.Call(ctx, args), nil
}

// Disconnect closes the named server's connection, or every connection if
// names is empty. Close errors are swallowed: disconnect is a best-effort
// cleanup, not an operation callers need to retry.
func (m *ToolClientManager) Disconnect(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(names) == 0 {
		for name, c := range m.conns {
			_ = c.transport.Close()
			delete(m.conns, name)
		}
		return
	}
	for _, name := range names {
		if c, ok := m.conns[name]; ok {
			_ = c.transport.Close()
			delete(m.conns, name)
		}
	}
}
