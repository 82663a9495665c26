package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/lonestarx1/gogrid/internal/config"
)

// sseTransport POSTs a JSON-RPC request body to a URL and reads the
// response as a server-sent-events stream: zero or more `data: ...` lines
// per frame, frames separated by a blank line. Frame payloads are
// concatenated in arrival order and the whole thing is treated as the
// JSON-RPC response once the stream ends.
type sseTransport struct {
	cfg    ServerConfig
	client *http.Client
	nextID int64
}

func connectSSE(cfg ServerConfig) (*sseTransport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mcp: sse transport %q: url is required", cfg.Name)
	}
	return &sseTransport{cfg: cfg, client: &http.Client{}}, nil
}

func (s *sseTransport) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&s.nextID, 1)
	req := jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("mcp: sse: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mcp: sse: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range s.cfg.Headers {
		httpReq.Header.Set(k, config.ResolveEnvRef(v))
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mcp: sse: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("mcp: sse: server error: HTTP %d", resp.StatusCode)
	}

	var payload strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			payload.WriteString(strings.TrimPrefix(data, " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mcp: sse: read stream: %w", err)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal([]byte(payload.String()), &rpcResp); err != nil {
		return nil, fmt.Errorf("mcp: sse: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("mcp: sse: server error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func (s *sseTransport) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	raw, err := s.request(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("mcp: sse: decode tools/list: %w", err)
	}
	return result.Tools, nil
}

func (s *sseTransport) Call(ctx context.Context, toolName string, args map[string]any) (any, error) {
	raw, err := s.request(ctx, "tools/call", callToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return nil, err
	}
	var content any
	if err := json.Unmarshal(raw, &content); err != nil {
		return string(raw), nil
	}
	return content, nil
}

func (s *sseTransport) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
