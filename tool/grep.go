package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"agentcore/core"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/invopop/jsonschema"
)

type grepInput struct {
	Pattern    string `json:"pattern" jsonschema:"description=Regular expression to search for"`
	PathGlob   string `json:"path_glob,omitempty" jsonschema:"description=Restrict the search to files matching this glob (default: all files)"`
	BySymbol   bool   `json:"by_symbol,omitempty" jsonschema:"description=When true and searching Go source\\, treat pattern as a function/type/method name and match only its declaration via AST rather than free text"`
}

type grepMatch struct {
	path string
	line int
	text string
}

// Grep searches file contents by regular expression, with an optional
// "by symbol" mode that narrows Go source matches to actual
// declarations using go-tree-sitter rather than textual occurrences
// (comments, strings, call sites).
type Grep struct{}

func (Grep) Name() string { return "grep" }

func (Grep) Definition() core.ToolDefinition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&grepInput{})
	raw, _ := json.Marshal(schema)
	return core.ToolDefinition{
		Name:        "grep",
		Description: "Search file contents by regular expression, optionally restricted to Go symbol declarations.",
		InputSchema: raw,
	}
}

func (Grep) RequiresPermission() bool { return false }

func (Grep) PermissionRequest(json.RawMessage) *core.PermissionRequest { return nil }

func (Grep) Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	var in grepInput
	if err := json.Unmarshal(input, &in); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid input: %s", err))
	}

	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid pattern: %s", err))
	}

	var matches []grepMatch
	walkErr := filepath.WalkDir(tctx.WorkingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(tctx.WorkingDir, path)
		if in.PathGlob != "" {
			if ok, _ := filepath.Match(in.PathGlob, rel); !ok {
				return nil
			}
		}

		if in.BySymbol && strings.HasSuffix(path, ".go") {
			matches = append(matches, grepBySymbol(path, rel, in.Pattern)...)
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				matches = append(matches, grepMatch{path: rel, line: lineNo, text: scanner.Text()})
			}
		}
		return nil
	})
	if walkErr != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("walking %s: %s", tctx.WorkingDir, walkErr))
	}

	var searchPaths []string
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d: %s\n", m.path, m.line, strings.TrimSpace(m.text))
		searchPaths = append(searchPaths, m.path)
	}
	tctx.EmitRecall(core.RecallEvent{ToolName: "grep", SearchMatches: searchPaths})

	if len(matches) == 0 {
		return core.SuccessResult(toolUseID, "no matches")
	}
	return core.SuccessResult(toolUseID, b.String())
}

// grepBySymbol parses a Go file and returns matches whose declaration
// name equals pattern exactly, distinguishing a real declaration from
// mere textual occurrences of the same identifier.
func grepBySymbol(path, rel, pattern string) []grepMatch {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil
	}

	var matches []grepMatch
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "function_declaration", "method_declaration", "type_spec":
			nameNode := n.ChildByFieldName("name")
			if nameNode != nil && nameNode.Content(src) == pattern {
				line := int(n.StartPoint().Row) + 1
				matches = append(matches, grepMatch{path: rel, line: line, text: n.Content(src)})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return matches
}
