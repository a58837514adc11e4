package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"agentcore/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct{ name string }

func (f fakeTool) Name() string { return f.name }
func (f fakeTool) Definition() core.ToolDefinition {
	return core.ToolDefinition{Name: f.name, Description: "fake", InputSchema: json.RawMessage(`{"type":"object"}`)}
}
func (f fakeTool) RequiresPermission() bool                                 { return false }
func (f fakeTool) PermissionRequest(json.RawMessage) *core.PermissionRequest { return nil }
func (f fakeTool) Execute(ctx context.Context, id string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	return core.SuccessResult(id, "fake result")
}

type fakeRegistry struct{ tools map[string]core.Tool }

func (r fakeRegistry) Names() []string {
	var names []string
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}
func (r fakeRegistry) Get(name string) (core.Tool, bool) { t, ok := r.tools[name]; return t, ok }

func runLine(t *testing.T, s *Server, line string) response {
	t.Helper()
	var out bytes.Buffer
	err := s.Run(context.Background(), strings.NewReader(line+"\n"), &out)
	require.NoError(t, err)
	var resp response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	return resp
}

func TestInitialize(t *testing.T) {
	s := NewServer(fakeRegistry{tools: map[string]core.Tool{}}, "/tmp")
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	assert.Nil(t, resp.Error)
}

func TestToolsList(t *testing.T) {
	s := NewServer(fakeRegistry{tools: map[string]core.Tool{"echo": fakeTool{name: "echo"}}}, "/tmp")
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Result)
}

func TestUnknownMethod_ReturnsMethodNotFound(t *testing.T) {
	s := NewServer(fakeRegistry{tools: map[string]core.Tool{}}, "/tmp")
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":3,"method":"bogus"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestToolsCall_Success(t *testing.T) {
	s := NewServer(fakeRegistry{tools: map[string]core.Tool{"echo": fakeTool{name: "echo"}}}, "/tmp")
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{}}}`)
	assert.Nil(t, resp.Error)
}

func TestParseError(t *testing.T) {
	s := NewServer(fakeRegistry{tools: map[string]core.Tool{}}, "/tmp")
	resp := runLine(t, s, `{not valid json`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeParseError, resp.Error.Code)
}
