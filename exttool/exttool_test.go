package exttool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"agentcore/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, filename string, m Manifest) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), data, 0644))
}

func objectSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func TestDiscoverManifests_SkipsMalformedAndInvalid(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good.json", Manifest{Name: "echo_tool", Command: []string{"echo"}, InputSchema: objectSchema()})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{not json`), 0644))
	writeManifest(t, dir, "missing_command.json", Manifest{Name: "no_cmd", InputSchema: objectSchema()})
	writeManifest(t, dir, "bad_name.json", Manifest{Name: "bad name!", Command: []string{"echo"}, InputSchema: objectSchema()})
	writeManifest(t, dir, "bad_schema.json", Manifest{Name: "bad_schema", Command: []string{"echo"}, InputSchema: json.RawMessage(`{"type":"string"}`)})

	manifests, err := DiscoverManifests(dir)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "echo_tool", manifests[0].Name)
}

func TestDiscoverManifests_MissingDirReturnsEmpty(t *testing.T) {
	manifests, err := DiscoverManifests(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestTool_ExecuteParsesLastStdoutLineAndRecall(t *testing.T) {
	manifest := Manifest{
		Name: "printer",
		Command: []string{"sh", "-c",
			`echo 'noise line'; echo '{"jsonrpc":"2.0","id":1,"result":{"output":"ok","recall":{"files_read":["a.txt","b.txt"]}}}'`,
		},
		InputSchema: objectSchema(),
	}
	tool := Tool{Manifest: manifest}
	recallCh := make(chan core.RecallEvent, 1)
	tctx := core.ToolContext{Context: context.Background(), WorkingDir: t.TempDir(), Recall: recallCh}

	result := tool.Execute(context.Background(), "t1", json.RawMessage(`{}`), tctx)
	assert.False(t, result.IsError)
	assert.Equal(t, "ok", result.Text)

	select {
	case ev := <-recallCh:
		assert.Equal(t, "printer", ev.ToolName)
		assert.Equal(t, []string{"a.txt", "b.txt"}, ev.FilesRead)
	default:
		t.Fatal("expected a recall event to be emitted")
	}
}

func TestTool_ExecuteReportsRPCError(t *testing.T) {
	manifest := Manifest{
		Name:        "failer",
		Command:     []string{"sh", "-c", `echo '{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"boom"}}'`},
		InputSchema: objectSchema(),
	}
	tool := Tool{Manifest: manifest}
	tctx := core.ToolContext{Context: context.Background(), WorkingDir: t.TempDir()}

	result := tool.Execute(context.Background(), "t1", json.RawMessage(`{}`), tctx)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text, "boom")
}

func TestTool_ExecuteReportsPayloadIsError(t *testing.T) {
	manifest := Manifest{
		Name:        "failing_tool",
		Command:     []string{"sh", "-c", `echo '{"jsonrpc":"2.0","id":1,"result":{"output":"file not found","is_error":true}}'`},
		InputSchema: objectSchema(),
	}
	tool := Tool{Manifest: manifest}
	tctx := core.ToolContext{Context: context.Background(), WorkingDir: t.TempDir()}

	result := tool.Execute(context.Background(), "t1", json.RawMessage(`{}`), tctx)
	assert.True(t, result.IsError)
	assert.Equal(t, "file not found", result.Text)
}

func TestTool_ExecuteFailsOnNonZeroExit(t *testing.T) {
	manifest := Manifest{
		Name:        "crasher",
		Command:     []string{"sh", "-c", `echo 'failure details' >&2; exit 1`},
		InputSchema: objectSchema(),
	}
	tool := Tool{Manifest: manifest}
	tctx := core.ToolContext{Context: context.Background(), WorkingDir: t.TempDir()}

	result := tool.Execute(context.Background(), "t1", json.RawMessage(`{}`), tctx)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text, "failure details")
}

func TestManifest_RequiresPermissionDefaultsTrue(t *testing.T) {
	m := Manifest{Name: "x", Command: []string{"x"}}
	assert.True(t, m.requiresPermission())

	no := false
	m.RequiresPermission = &no
	assert.False(t, m.requiresPermission())
}

func TestTool_PermissionRequestCollectsPathsAndNonDestructive(t *testing.T) {
	tool := Tool{Manifest: Manifest{Name: "writer", Command: []string{"x"}, InputSchema: objectSchema()}}

	req := tool.PermissionRequest(json.RawMessage(`{"path":"a.txt","paths":["b.txt","c.txt"]}`))
	require.NotNil(t, req)
	assert.Equal(t, "writer", req.ToolName)
	assert.False(t, req.IsDestructive)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, req.AffectedPaths)
}

func TestTool_PermissionRequestNilWhenNotRequired(t *testing.T) {
	no := false
	tool := Tool{Manifest: Manifest{Name: "reader", Command: []string{"x"}, RequiresPermission: &no}}
	assert.Nil(t, tool.PermissionRequest(json.RawMessage(`{}`)))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, "tools"), expandHome("~/tools"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
}
