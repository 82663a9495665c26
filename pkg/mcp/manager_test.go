package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport stand-in so manager routing can be
// exercised without spawning a sub-process or hitting a real HTTP endpoint.
type fakeTransport struct {
	tools  []ToolDescriptor
	onCall func(tool string, args map[string]any) (any, error)
	closed bool
}

func (f *fakeTransport) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	return f.tools, nil
}

func (f *fakeTransport) Call(ctx context.Context, toolName string, args map[string]any) (any, error) {
	return f.onCall(toolName, args)
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func newManagerWithFakeConn(name string, transport Transport, kind string, tools map[string]*Tool) *ToolClientManager {
	m := NewToolClientManager(nil)
	m.conns[name] = &connection{transport: transport, kind: kind, tools: tools}
	return m
}

func TestExecuteToolRoutesToOwningServer(t *testing.T) {
	ft := &fakeTransport{
		onCall: func(tool string, args map[string]any) (any, error) {
			return "quote for " + args["ticker"].(string), nil
		},
	}
	tool, err := NewTool("market", "quote", "desc", simpleSchema(), map[string]any{"apiKey": "k"},
		func(ctx context.Context, args map[string]any) (any, error) { return ft.Call(ctx, "quote", args) }, nil)
	require.NoError(t, err)

	m := newManagerWithFakeConn("market", ft, "stdio", map[string]*Tool{"quote": tool})

	res, err := m.ExecuteTool(context.Background(), "market/quote", map[string]any{"ticker": "NVDA"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "quote for NVDA", res.Content)
}

func TestExecuteToolUnknownServerReturnsError(t *testing.T) {
	m := NewToolClientManager(nil)
	_, err := m.ExecuteTool(context.Background(), "missing/tool", nil)
	assert.ErrorContains(t, err, "no server connected")
}

func TestExecuteToolUnknownToolReturnsError(t *testing.T) {
	ft := &fakeTransport{}
	m := newManagerWithFakeConn("market", ft, "stdio", map[string]*Tool{})
	_, err := m.ExecuteTool(context.Background(), "market/quote", nil)
	assert.ErrorContains(t, err, "no tool")
}

func TestExecuteToolMalformedQualifiedNameReturnsError(t *testing.T) {
	m := NewToolClientManager(nil)
	_, err := m.ExecuteTool(context.Background(), "not-qualified", nil)
	assert.ErrorContains(t, err, "not a qualified tool name")
}

func TestListToolsReturnsFlatCatalogAcrossServers(t *testing.T) {
	toolA, _ := NewTool("a", "x", "", json.RawMessage(`{}`), nil, nil, nil)
	toolB, _ := NewTool("b", "y", "", json.RawMessage(`{}`), nil, nil, nil)
	m := NewToolClientManager(nil)
	m.conns["a"] = &connection{tools: map[string]*Tool{"x": toolA}, transport: &fakeTransport{}}
	m.conns["b"] = &connection{tools: map[string]*Tool{"y": toolB}, transport: &fakeTransport{}}

	all := m.ListTools()
	assert.Len(t, all, 2)
}

func TestGetServerInfosReportsQualifiedAndOriginalNames(t *testing.T) {
	tool, _ := NewTool("market", "quote", "fetches a quote", json.RawMessage(`{}`), nil, nil, nil)
	m := newManagerWithFakeConn("market", &fakeTransport{}, "sse", map[string]*Tool{"quote": tool})

	infos := m.GetServerInfos()
	require.Len(t, infos, 1)
	assert.Equal(t, "market", infos[0].Name)
	assert.Equal(t, "sse", infos[0].Transport)
	require.Len(t, infos[0].Tools, 1)
	assert.Equal(t, "market/quote", infos[0].Tools[0].QualifiedName)
	assert.Equal(t, "quote", infos[0].Tools[0].OriginalName)
}

func TestDisconnectNamedClosesOnlyThatConnection(t *testing.T) {
	ftA := &fakeTransport{}
	ftB := &fakeTransport{}
	m := NewToolClientManager(nil)
	m.conns["a"] = &connection{transport: ftA, tools: map[string]*Tool{}}
	m.conns["b"] = &connection{transport: ftB, tools: map[string]*Tool{}}

	m.Disconnect("a")
	assert.True(t, ftA.closed)
	assert.False(t, ftB.closed)
	assert.Len(t, m.conns, 1)
}

func TestDisconnectAllClosesEveryConnection(t *testing.T) {
	ftA := &fakeTransport{}
	ftB := &fakeTransport{}
	m := NewToolClientManager(nil)
	m.conns["a"] = &connection{transport: ftA, tools: map[string]*Tool{}}
	m.conns["b"] = &connection{transport: ftB, tools: map[string]*Tool{}}

	m.Disconnect()
	assert.True(t, ftA.closed)
	assert.True(t, ftB.closed)
	assert.Empty(t, m.conns)
}

func TestInitializePartialFailureInvokesOnErrorButConnectsRest(t *testing.T) {
	m := NewToolClientManager(nil)
	var failed []string
	configs := []ServerConfig{
		{Name: "bad"},
		{Name: "also-bad"},
	}
	m.Initialize(context.Background(), configs, func(name string, err error) {
		failed = append(failed, name)
	})
	assert.ElementsMatch(t, []string{"bad", "also-bad"}, failed)
	assert.Empty(t, m.conns)
}
