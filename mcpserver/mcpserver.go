// Package mcpserver implements the Model Context Protocol server side
// (spec §4.5/§6): a newline-delimited JSON-RPC 2.0 stdio server exposing
// the agent's own Tool Registry to an external MCP client, handling
// initialize/initialized/tools/list/tools/call with the JSON-RPC error
// codes the protocol mandates.
//
// This is implemented directly against stdlib encoding/json and
// bufio.Scanner rather than a generic MCP SDK: the available examples
// only demonstrate MCP *client* usage (connecting out to someone else's
// server), never the server-side .Run()/stdio transport API, so there
// was nothing in the pack to ground a dependency choice on for this
// direction of the protocol. See DESIGN.md.
package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"agentcore/core"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeServerError    = -32000
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolSource is the subset of the Tool Registry the server needs: list
// every tool's definition and resolve one call by name.
type ToolSource interface {
	Names() []string
	Get(name string) (core.Tool, bool)
}

// Server serves one MCP session over an io.Reader/io.Writer pair
// (typically a subprocess's stdin/stdout). One Server handles one
// client connection; it is not safe for concurrent use by multiple
// readers of the same stream.
type Server struct {
	Tools      ToolSource
	WorkingDir string

	mu          sync.Mutex
	initialized bool
}

// NewServer returns a Server exposing tools rooted at workingDir.
func NewServer(tools ToolSource, workingDir string) *Server {
	return &Server{Tools: tools, WorkingDir: workingDir}
}

// Run reads newline-delimited JSON-RPC requests from r and writes
// responses to w until r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(ctx, line)
		if resp == nil {
			continue // notification; no response expected
		}
		out, err := json.Marshal(resp)
		if err != nil {
			out, _ = json.Marshal(&response{JSONRPC: "2.0", ID: resp.ID, Error: &rpcError{Code: codeInternalError, Message: "internal error: " + err.Error()}})
		}
		if _, err := w.Write(append(out, '\n')); err != nil {
			return fmt.Errorf("writing mcp response: %w", err)
		}
	}
	return scanner.Err()
}

func (s *Server) handleLine(ctx context.Context, line []byte) *response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return &response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error: " + err.Error()}}
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "invalid request"}}
	}

	switch req.Method {
	case "initialize":
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]string{"name": "agentcore", "version": "0.1.0"},
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		}}

	case "notifications/initialized":
		return nil // notification: no response

	case "tools/list":
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{"tools": s.listTools()}}

	case "tools/call":
		return s.handleToolsCall(ctx, req)

	default:
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}}
	}
}

func (s *Server) listTools() []map[string]interface{} {
	var tools []map[string]interface{}
	for _, name := range s.Tools.Names() {
		t, ok := s.Tools.Get(name)
		if !ok {
			continue
		}
		def := t.Definition()
		tools = append(tools, map[string]interface{}{
			"name":        def.Name,
			"description": def.Description,
			"inputSchema": json.RawMessage(def.InputSchema),
		})
	}
	return tools
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, req request) *response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}}
	}

	t, ok := s.Tools.Get(params.Name)
	if !ok {
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeServerError, Message: "unknown tool: " + params.Name}}
	}

	tctx := core.ToolContext{Context: ctx, WorkingDir: s.WorkingDir}
	result := t.Execute(ctx, "mcp-call", params.Arguments, tctx)

	return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
		"content": []map[string]interface{}{{"type": "text", "text": result.Text}},
		"isError": result.IsError,
	}}
}
