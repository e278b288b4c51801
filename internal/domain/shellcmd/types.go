// Package shellcmd parses a shell command string into the three facts the
// policy service needs to reason about it: the top-level sub-commands it
// runs, the files it reads, and the package-manager targets it installs or
// executes. Parsing prefers a real bash-grammar AST (mvdan.cc/sh/v3/syntax)
// and degrades to best-effort token splitting when the grammar doesn't
// parse -- it never raises.
package shellcmd

// Result is the parsed-command contract consumed by the policy request
// builder (C7) and by the Cursor/Claude Code shell hooks (C8).
type Result struct {
	// SubCommands is each top-level pipeline segment, redirections still
	// attached, in source order.
	SubCommands []string
	// InputFiles is every argument classified as a file actually read,
	// deduplicated in first-seen order.
	InputFiles []string
	// Packages maps ecosystem name to the deduplicated, explicit install/run
	// targets found for that ecosystem, in first-seen order.
	Packages map[string][]string
}

// segment is one leaf command in the pipeline: an executable plus its
// arguments, already split into flags vs. positionals, with the
// subcommand verb (npm's "install", cargo's "add") pulled out when the
// executable is a known subcommand-style tool.
type segment struct {
	raw        string
	executable string
	subCommand string
	args       []string
	flags      map[string]string
	// words is the full ordered token list after the executable (and any
	// stripped leading sudo) -- flags, subcommand verb and positionals all
	// still in source order. Package-target extraction needs this order to
	// handle verbs like pip's "-e"/"-r" that consume the following token.
	words []string
}
