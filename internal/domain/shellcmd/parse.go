package shellcmd

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Parse converts a raw shell command into a Result. It never returns an
// error: a command the bash grammar can't parse degrades to best-effort
// operator splitting (fallbackParse) rather than failing the caller.
func Parse(cmd string) Result {
	var subCommands []string
	var segments []segment

	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(cmd), "")
	if err != nil {
		subCommands, segments = fallbackParse(cmd)
	} else {
		for _, stmt := range file.Stmts {
			wr := walkStmt(stmt)
			subCommands = append(subCommands, wr.subCommands...)
			segments = append(segments, wr.segments...)
		}
	}

	return Result{
		SubCommands: subCommands,
		InputFiles:  classifyInputFiles(segments),
		Packages:    classifyPackages(segments),
	}
}

type walkResult struct {
	subCommands []string
	segments    []segment
}

// walkStmt flattens a statement into leaf sub-commands and their parsed
// segments, splitting pipelines, `&&` and `||` the same way top-level `;`
// already splits file.Stmts -- all four are sub-command boundaries per the
// contract, not just statement separators.
func walkStmt(stmt *syntax.Stmt) walkResult {
	if stmt == nil || stmt.Cmd == nil {
		return walkResult{}
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.BinaryCmd:
		left := walkStmt(cmd.X)
		right := walkStmt(cmd.Y)
		return walkResult{
			subCommands: append(left.subCommands, right.subCommands...),
			segments:    append(left.segments, right.segments...),
		}
	case *syntax.Subshell:
		var wr walkResult
		for _, s := range cmd.Stmts {
			sub := walkStmt(s)
			wr.subCommands = append(wr.subCommands, sub.subCommands...)
			wr.segments = append(wr.segments, sub.segments...)
		}
		return wr
	case *syntax.CallExpr:
		seg := callExprToSegment(cmd)
		return walkResult{subCommands: []string{printStmt(stmt)}, segments: []segment{seg}}
	default:
		return walkResult{subCommands: []string{printStmt(stmt)}}
	}
}

func printStmt(stmt *syntax.Stmt) string {
	var sb strings.Builder
	syntax.NewPrinter().Print(&sb, stmt)
	return strings.TrimSpace(sb.String())
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	syntax.NewPrinter().Print(&sb, word)
	return sb.String()
}

// callExprToSegment mirrors the reference structural analyzer's flag/arg
// split: sudo is transparent (skip its own flags, re-target the real
// command), long/short flags are pulled out of the positional args, and a
// leading subcommand verb (npm's "install", cargo's "add") is recognized
// for tools the ecosystem table knows about.
func callExprToSegment(call *syntax.CallExpr) segment {
	seg := segment{flags: make(map[string]string)}

	words := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		words = append(words, wordToString(w))
	}
	if len(words) == 0 {
		return seg
	}

	seg.executable = words[0]
	remaining := words[1:]

	if seg.executable == "sudo" {
		for len(remaining) > 0 && strings.HasPrefix(remaining[0], "-") {
			remaining = remaining[1:]
		}
		if len(remaining) > 0 {
			seg.executable = remaining[0]
			remaining = remaining[1:]
		}
	}
	seg.words = append([]string{}, remaining...)

	for _, w := range remaining {
		switch {
		case strings.HasPrefix(w, "--") && len(w) > 2:
			flag := w[2:]
			if i := strings.Index(flag, "="); i >= 0 {
				seg.flags[flag[:i]] = flag[i+1:]
			} else {
				seg.flags[flag] = ""
			}
		case strings.HasPrefix(w, "-") && len(w) > 1:
			for _, ch := range w[1:] {
				seg.flags[string(ch)] = ""
			}
		default:
			seg.args = append(seg.args, w)
		}
	}

	if len(seg.args) > 0 && isSubcommandTool(seg.executable) {
		seg.subCommand = seg.args[0]
		seg.args = seg.args[1:]
	}

	seg.raw = strings.Join(words, " ")
	return seg
}

// fallbackParse splits on the four sub-command boundary operators outside
// quotes, without attempting flag/subcommand classification beyond a plain
// whitespace split -- used only when the bash grammar itself rejects the
// input (e.g. truncated heredocs, exotic quoting).
func fallbackParse(cmd string) ([]string, []segment) {
	parts := splitUnquoted(cmd)

	var subCommands []string
	var segments []segment
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		subCommands = append(subCommands, part)

		words := strings.Fields(part)
		if len(words) == 0 {
			continue
		}
		seg := segment{raw: part, executable: words[0], flags: make(map[string]string)}
		rest := words[1:]
		if seg.executable == "sudo" {
			for len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
				rest = rest[1:]
			}
			if len(rest) > 0 {
				seg.executable = rest[0]
				rest = rest[1:]
			}
		}
		seg.words = append([]string{}, rest...)
		for _, w := range rest {
			if strings.HasPrefix(w, "-") {
				seg.flags[strings.TrimLeft(w, "-")] = ""
			} else {
				seg.args = append(seg.args, w)
			}
		}
		if len(seg.args) > 0 && isSubcommandTool(seg.executable) {
			seg.subCommand = seg.args[0]
			seg.args = seg.args[1:]
		}
		segments = append(segments, seg)
	}
	return subCommands, segments
}

// splitUnquoted splits on |, ;, && and || that are not inside single or
// double quotes. It does not interpret escapes beyond quote tracking --
// good enough for the fallback path's best-effort mandate.
func splitUnquoted(s string) []string {
	var parts []string
	var cur strings.Builder
	var inSingle, inDouble bool

	flush := func() {
		parts = append(parts, cur.String())
		cur.Reset()
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteByte(c)
			i++
		case c == '"' && !inSingle:
			inDouble = !inDouble
			cur.WriteByte(c)
			i++
		case !inSingle && !inDouble && c == '|' && i+1 < len(s) && s[i+1] == '|':
			flush()
			i += 2
		case !inSingle && !inDouble && c == '&' && i+1 < len(s) && s[i+1] == '&':
			flush()
			i += 2
		case !inSingle && !inDouble && (c == '|' || c == ';'):
			flush()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return parts
}
