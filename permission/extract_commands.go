package permission

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
)

// ExtractCommands parses a bash script string using tree-sitter and returns
// every executable command found within it, each with its full text
// (arguments, redirections, and trailing background operator if present).
// Wrapper commands (sh -c, eval, sudo, xargs, find -exec, ...) are unwrapped
// recursively so the inner command is what gets matched against permission
// patterns, not the wrapper itself.
func ExtractCommands(script string) []string {
	parser := sitter.NewParser()
	parser.SetLanguage(bash.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(script))
	if err != nil {
		return nil
	}

	source := []byte(script)
	var commands []string
	walkForCommands(tree.RootNode(), source, &commands)
	return commands
}

func walkForCommands(node *sitter.Node, source []byte, commands *[]string) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "command":
		cmdText := fullCommandText(node, source)
		if cmdText != "" {
			*commands = append(*commands, cmdText)
			unwrapSpecialCommand(cmdText, commands)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walkForCommandSubstitutions(node.Child(i), source, commands)
		}
		return

	case "redirected_statement":
		cmdText := strings.TrimSpace(node.Content(source))
		cmdText = appendBackgroundOperator(node, source, cmdText)
		if cmdText != "" {
			*commands = append(*commands, cmdText)
			unwrapSpecialCommand(cmdText, commands)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walkForCommandSubstitutions(node.Child(i), source, commands)
		}
		return

	case "subshell", "compound_statement", "command_substitution":
		for i := 0; i < int(node.ChildCount()); i++ {
			walkForCommands(node.Child(i), source, commands)
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkForCommands(node.Child(i), source, commands)
	}
}

func walkForCommandSubstitutions(node *sitter.Node, source []byte, commands *[]string) {
	if node == nil {
		return
	}
	if node.Type() == "command_substitution" {
		walkForCommands(node, source, commands)
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkForCommandSubstitutions(node.Child(i), source, commands)
	}
}

func fullCommandText(node *sitter.Node, source []byte) string {
	return appendBackgroundOperator(node, source, strings.TrimSpace(node.Content(source)))
}

func appendBackgroundOperator(node *sitter.Node, source []byte, cmdText string) string {
	parent := node.Parent()
	if parent == nil {
		return cmdText
	}
	for i := 0; i < int(parent.ChildCount()); i++ {
		if parent.Child(i).Type() == "&" {
			return cmdText + " &"
		}
	}
	return cmdText
}

// unwrapSpecialCommand extracts the inner command from shells wrapping
// another command: sh/bash/zsh -c, eval, exec, xargs, sudo/su/doas,
// env, ssh, find -exec, source, and similar process/privilege wrappers.
func unwrapSpecialCommand(cmdText string, commands *[]string) {
	parts := splitRespectingQuotes(cmdText)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "sh", "bash", "zsh":
		unwrapShellDashC(parts, commands, unwrapScriptFile)
	case "eval":
		unwrapJoinedRemainder(parts, commands)
	case "exec", "lima":
		unwrapLiteralRemainder(parts, commands)
	case "xargs":
		unwrapAfterFlags(parts, commands, map[string]bool{
			"-I": true, "-n": true, "-P": true, "-L": true,
			"-s": true, "-a": true, "-E": true, "-d": true,
		})
	case "sudo":
		unwrapAfterFlagsRecursive(parts, commands, map[string]bool{
			"-u": true, "-g": true, "-C": true, "-h": true, "-p": true,
			"-r": true, "-t": true, "-U": true, "-T": true, "-R": true,
		})
	case "su":
		unwrapShellDashC(parts, commands, func([]string, *[]string) {})
	case "doas", "nohup", "parallel", "command", "builtin", "time", "ltrace":
		unwrapLiteralRemainder(parts, commands)
	case "runuser":
		unwrapRunuser(parts, commands)
	case "nice":
		unwrapAfterFlags(parts, commands, map[string]bool{"-n": true})
	case "ionice":
		unwrapAfterFlags(parts, commands, map[string]bool{"-c": true, "-n": true})
	case "timeout":
		unwrapAfterPositional(parts, commands, map[string]bool{"-k": true, "--kill-after": true, "-s": true, "--signal": true}, 1)
	case "stdbuf":
		unwrapAfterFlags(parts, commands, map[string]bool{"-i": true, "-o": true, "-e": true, "--input": true, "--output": true, "--error": true})
	case "ssh":
		unwrapAfterPositional(parts, commands, map[string]bool{
			"-p": true, "-i": true, "-l": true, "-o": true, "-F": true,
			"-J": true, "-L": true, "-R": true, "-D": true, "-W": true,
			"-b": true, "-c": true, "-e": true, "-m": true, "-O": true,
			"-Q": true, "-S": true, "-w": true, "-B": true, "-E": true,
		}, 1)
	case "find":
		unwrapFindExec(parts, commands)
	case "fd":
		unwrapFdExec(parts, commands)
	case "strace":
		unwrapAfterFlags(parts, commands, map[string]bool{"-p": true, "-e": true, "-o": true, "-s": true, "-P": true, "-I": true, "-b": true, "-O": true, "-S": true, "-U": true, "-X": true})
	case "flock":
		unwrapShellDashC(parts, commands, func(p []string, c *[]string) {
			unwrapAfterPositional(p, c, map[string]bool{
				"-w": true, "--wait": true, "--timeout": true,
				"-E": true, "--conflict-exit-code": true,
			}, 1)
		})
	case "watch":
		unwrapAfterFlags(parts, commands, map[string]bool{"-n": true})
	case "entr":
		unwrapLiteralRemainder(parts, commands)
	case "setpriv":
		unwrapAfterFlags(parts, commands, map[string]bool{"--reuid": true, "--regid": true, "--groups": true, "--inh-caps": true, "--ambient-caps": true, "--bounding-set": true, "--securebits": true, "--selinux-label": true, "--apparmor-profile": true})
	case "capsh":
		unwrapCapsh(parts, commands)
	case "cgexec":
		unwrapAfterFlags(parts, commands, map[string]bool{"-g": true})
	case "systemd-run":
		unwrapAfterFlags(parts, commands, map[string]bool{"-u": true, "--unit": true, "-p": true, "--property": true, "-M": true, "--machine": true, "-E": true, "--setenv": true, "--uid": true, "--gid": true, "--nice": true, "--working-directory": true})
	case "dbus-run-session":
		unwrapLiteralRemainder(parts, commands)
	case "env":
		unwrapEnv(parts, commands)
	case "source", ".":
		unwrapSourcedScript(parts, commands)
	}
}

func splitRespectingQuotes(cmd string) []string {
	var parts []string
	var cur strings.Builder
	inSingle, inDouble, escaped := false, false, false

	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\' && !inSingle:
			escaped = true
			cur.WriteByte(c)
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteByte(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			cur.WriteByte(c)
		case c == ' ' && !inSingle && !inDouble:
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// unwrapShellDashC looks for "-c <script>" and recursively extracts the
// inner script's commands; if absent, falls back to fallback(parts, commands).
func unwrapShellDashC(parts []string, commands *[]string, fallback func([]string, *[]string)) {
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "-c" {
			inner := unquote(parts[i+1])
			*commands = append(*commands, ExtractCommands(inner)...)
			return
		}
	}
	fallback(parts, commands)
}

func unwrapScriptFile(parts []string, commands *[]string) {
	for _, p := range parts {
		if p == "-c" {
			return
		}
	}
	i := 1
	for i < len(parts) && strings.HasPrefix(parts[i], "-") {
		i++
	}
	if i >= len(parts) {
		return
	}
	script := parts[i]
	if !strings.HasPrefix(script, "/") && !strings.HasPrefix(script, "./") && !strings.HasPrefix(script, "../") {
		script = "./" + script
	}
	*commands = append(*commands, script)
}

func unwrapJoinedRemainder(parts []string, commands *[]string) {
	if len(parts) < 2 {
		return
	}
	inner := unquote(strings.Join(parts[1:], " "))
	*commands = append(*commands, ExtractCommands(inner)...)
}

func unwrapLiteralRemainder(parts []string, commands *[]string) {
	if len(parts) < 2 {
		return
	}
	if inner := strings.Join(parts[1:], " "); inner != "" {
		*commands = append(*commands, inner)
	}
}

func unwrapAfterFlags(parts []string, commands *[]string, flagsWithArgs map[string]bool) {
	if len(parts) < 2 {
		return
	}
	i := 1
	for i < len(parts) && strings.HasPrefix(parts[i], "-") {
		if flagsWithArgs[parts[i]] && i+1 < len(parts) {
			i += 2
		} else {
			i++
		}
	}
	if i < len(parts) {
		if inner := strings.Join(parts[i:], " "); inner != "" {
			*commands = append(*commands, inner)
		}
	}
}

func unwrapAfterFlagsRecursive(parts []string, commands *[]string, flagsWithArgs map[string]bool) {
	if len(parts) < 2 {
		return
	}
	i := 1
	for i < len(parts) && strings.HasPrefix(parts[i], "-") {
		if flagsWithArgs[parts[i]] && i+1 < len(parts) {
			i += 2
		} else {
			i++
		}
	}
	if i < len(parts) {
		if inner := strings.Join(parts[i:], " "); inner != "" {
			*commands = append(*commands, inner)
			unwrapSpecialCommand(inner, commands)
		}
	}
}

func unwrapAfterPositional(parts []string, commands *[]string, flagsWithArgs map[string]bool, numPositional int) {
	if len(parts) < 2 {
		return
	}
	i, seen := 1, 0
	for i < len(parts) {
		if strings.HasPrefix(parts[i], "-") {
			if flagsWithArgs[parts[i]] && i+1 < len(parts) {
				i += 2
			} else {
				i++
			}
			continue
		}
		seen++
		i++
		if seen >= numPositional {
			break
		}
	}
	if i < len(parts) {
		remainder := parts[i:]
		if len(remainder) == 1 {
			if u := unquote(remainder[0]); u != remainder[0] {
				*commands = append(*commands, u)
				return
			}
		}
		if inner := strings.Join(remainder, " "); inner != "" {
			*commands = append(*commands, inner)
		}
	}
}

func unwrapRunuser(parts []string, commands *[]string) {
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "-c" {
			inner := unquote(parts[i+1])
			*commands = append(*commands, ExtractCommands(inner)...)
			return
		}
	}
	unwrapAfterFlags(parts, commands, map[string]bool{"-u": true, "-g": true, "-G": true})
}

func unwrapEnv(parts []string, commands *[]string) {
	if len(parts) < 2 {
		return
	}
	flagsWithArgs := map[string]bool{
		"-u": true, "--unset": true,
		"-C": true, "--chdir": true,
		"-S": true, "--split-string": true,
	}
	i := 1
	for i < len(parts) {
		p := parts[i]
		if strings.Contains(p, "=") && !strings.HasPrefix(p, "-") {
			i++
			continue
		}
		if strings.HasPrefix(p, "-") {
			if flagsWithArgs[p] && i+1 < len(parts) {
				i += 2
			} else {
				i++
			}
			continue
		}
		break
	}
	if i < len(parts) {
		if inner := strings.Join(parts[i:], " "); inner != "" {
			*commands = append(*commands, inner)
			unwrapSpecialCommand(inner, commands)
		}
	}
}

func unwrapFindExec(parts []string, commands *[]string) {
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "-exec", "-execdir", "-ok", "-okdir":
			var clause []string
			for j := i + 1; j < len(parts); j++ {
				if parts[j] == "\\;" || parts[j] == ";" || parts[j] == "+" {
					break
				}
				clause = append(clause, parts[j])
			}
			if len(clause) > 0 {
				*commands = append(*commands, strings.Join(clause, " "))
			}
		}
	}
}

func unwrapFdExec(parts []string, commands *[]string) {
	for i := 0; i < len(parts); i++ {
		if parts[i] == "-x" || parts[i] == "--exec" {
			if i+1 < len(parts) {
				if inner := strings.Join(parts[i+1:], " "); inner != "" {
					*commands = append(*commands, inner)
				}
			}
			return
		}
	}
}

func unwrapCapsh(parts []string, commands *[]string) {
	for i := 1; i < len(parts)-2; i++ {
		if parts[i] == "--" && parts[i+1] == "-c" {
			inner := unquote(parts[i+2])
			*commands = append(*commands, ExtractCommands(inner)...)
			return
		}
	}
}

func unwrapSourcedScript(parts []string, commands *[]string) {
	if len(parts) < 2 {
		return
	}
	script := parts[1]
	if !strings.HasPrefix(script, "/") && !strings.HasPrefix(script, "./") && !strings.HasPrefix(script, "../") {
		script = "./" + script
	}
	*commands = append(*commands, script)
}
