package shellcmd

import "strings"

// knownExtensions are file extensions that qualify an argument as an input
// file per the parser contract.
var knownExtensions = []string{
	".py", ".js", ".ts", ".go", ".rs", ".c", ".h", ".cpp", ".hpp",
	".json", ".yaml", ".yml", ".toml", ".txt", ".md", ".log", ".csv", ".tsv",
	".env", ".conf", ".ini", ".sh", ".rb", ".pl", ".php", ".java", ".kt",
	".swift", ".dart", ".scala", ".clj", ".elm", ".nim", ".zig", ".lua",
	".tex", ".sql", ".xml", ".html", ".htm", ".css",
	".tar", ".tar.gz", ".tgz", ".zip", ".gz", ".bz2", ".xz", ".7z",
}

// knownFilenames are exact basenames that qualify as an input file even
// without a recognized extension.
var knownFilenames = map[string]bool{
	"Makefile":         true,
	"Dockerfile":       true,
	"Cargo.toml":       true,
	"Cargo.lock":       true,
	"package.json":     true,
	"package-lock.json": true,
	"go.mod":           true,
	"go.sum":           true,
	"requirements.txt": true,
	"Gemfile":          true,
	"Gemfile.lock":     true,
	"Pipfile":          true,
	"pyproject.toml":   true,
	"CMakeLists.txt":   true,
	"composer.json":    true,
}

var redirectOps = map[string]bool{
	">": true, ">>": true, "2>": true, "&>": true,
}

func isFlag(w string) bool {
	return len(w) > 1 && strings.HasPrefix(w, "-")
}

func unquote(w string) string {
	if len(w) >= 2 {
		if (w[0] == '\'' && w[len(w)-1] == '\'') || (w[0] == '"' && w[len(w)-1] == '"') {
			return w[1 : len(w)-1]
		}
	}
	return w
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func firstPositionalIndex(words []string) int {
	for i, w := range words {
		if !isFlag(w) {
			return i
		}
	}
	return -1
}

// isPackageTarget reports whether a token is an explicit install/run
// target rather than a flag, a path, a glob, or a shell variable.
func isPackageTarget(w string) bool {
	if w == "" || isFlag(w) {
		return false
	}
	if strings.HasPrefix(w, "./") || strings.HasPrefix(w, "../") || strings.HasPrefix(w, "/") {
		return false
	}
	if strings.ContainsAny(w, "*?") {
		return false
	}
	if strings.HasPrefix(w, "$") {
		return false
	}
	return true
}

// isCandidateFile reports whether a token qualifies as a read input file.
func isCandidateFile(path string) bool {
	if path == "" {
		return false
	}
	if strings.ContainsAny(path, "*?") {
		return false
	}
	if strings.HasPrefix(path, "$") {
		return false
	}
	if strings.HasSuffix(path, "/") {
		return false
	}

	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	if knownFilenames[base] {
		return true
	}
	for _, ext := range knownExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// flagPresence scans words for a flag by name (without leading dashes),
// recognizing long (--flag / --flag=value), short (-f / -f value), and
// combined single-letter short forms (-Syu contains -S). It returns the
// flag's value (empty if none was attached) and whether the flag was found.
func flagPresence(words []string, flag string) (value string, present bool) {
	long := "--" + flag
	short := "-" + flag
	for i, w := range words {
		switch {
		case strings.HasPrefix(w, long+"="):
			return w[len(long)+1:], true
		case w == long:
			if i+1 < len(words) {
				return words[i+1], true
			}
			return "", true
		case w == short:
			if i+1 < len(words) {
				return words[i+1], true
			}
			return "", true
		case len(flag) == 1 && strings.HasPrefix(w, "-") && !strings.HasPrefix(w, "--") && strings.ContainsRune(w[1:], rune(flag[0])):
			return "", true
		}
	}
	return "", false
}

// pipModuleWords detects the "python -m pip <verb> ..." / "python3 -m pip
// <verb> ..." composite invocation and, if found, returns the word list as
// if pip itself had been invoked directly.
func pipModuleWords(words []string) ([]string, bool) {
	for i := 0; i+1 < len(words); i++ {
		if words[i] == "-m" && words[i+1] == "pip" {
			return words[i+2:], true
		}
	}
	return nil, false
}

// looksLikeModulePath reports whether a token looks like a Go module path
// (`go install`/`go run` target), optionally suffixed with `@version` or
// ending in the `/...` wildcard.
func looksLikeModulePath(w string) bool {
	if isFlag(w) {
		return false
	}
	if strings.HasSuffix(w, "/...") {
		return true
	}
	base := w
	if idx := strings.IndexByte(w, '@'); idx > 0 {
		base = w[:idx]
	}
	return strings.Contains(base, ".") && strings.Contains(base, "/")
}

// classifyInputFiles extracts every file-like argument read by the
// command, per the parser contract: known extension or known filename,
// never a flag, output-redirect target, glob, shell variable, or directory.
func classifyInputFiles(segments []segment) []string {
	seen := make(map[string]bool)
	var files []string

	for _, seg := range segments {
		skipNext := false
		for _, w := range seg.words {
			if skipNext {
				skipNext = false
				continue
			}
			if redirectOps[w] || w == "-o" {
				skipNext = true
				continue
			}
			if strings.HasPrefix(w, ">") || strings.HasPrefix(w, "2>") || strings.HasPrefix(w, "&>") {
				continue
			}
			if isFlag(w) {
				continue
			}
			candidate := unquote(w)
			if !isCandidateFile(candidate) || seen[candidate] {
				continue
			}
			seen[candidate] = true
			files = append(files, candidate)
		}
	}
	return files
}

// classifyPackages extracts explicit package-manager install/run targets
// per segment, grouped by ecosystem, in first-seen order.
func classifyPackages(segments []segment) map[string][]string {
	result := make(map[string][]string)
	seenByEco := make(map[string]map[string]bool)

	add := func(eco, target string) {
		target = strings.TrimSpace(target)
		if target == "" {
			return
		}
		if seenByEco[eco] == nil {
			seenByEco[eco] = make(map[string]bool)
		}
		if seenByEco[eco][target] {
			return
		}
		seenByEco[eco][target] = true
		result[eco] = append(result[eco], target)
	}

	for _, seg := range segments {
		exec := strings.ToLower(seg.executable)
		words := seg.words

		if exec == "python" || exec == "python3" {
			if pipWords, ok := pipModuleWords(words); ok {
				exec = "pip"
				words = pipWords
			}
		}

		idx := firstPositionalIndex(words)
		subcmd := ""
		if idx >= 0 {
			subcmd = words[idx]
		}

		for _, t := range triggers {
			if !strings.EqualFold(t.executable, exec) {
				continue
			}

			var rest []string
			if len(t.subcommands) > 0 {
				if idx < 0 || !containsFold(t.subcommands, subcmd) {
					continue
				}
				rest = words[idx+1:]

				nested := true
				for _, nv := range t.nestedVerbs {
					ridx := firstPositionalIndex(rest)
					if ridx < 0 || !strings.EqualFold(rest[ridx], nv) {
						nested = false
						break
					}
					rest = rest[ridx+1:]
				}
				if !nested {
					continue
				}
			} else {
				rest = words
			}

			if t.requireFlag != "" {
				val, present := flagPresence(rest, t.requireFlag)
				if !present {
					continue
				}
				if t.flagValueIsTarget {
					if val != "" {
						add(t.ecosystem, unquote(val))
					}
					continue
				}
			}

			switch {
			case t.modulePath:
				for _, w := range rest {
					if looksLikeModulePath(w) {
						add(t.ecosystem, unquote(w))
					}
				}
			case t.firstArgOnly:
				for _, w := range rest {
					if isFlag(w) {
						continue
					}
					add(t.ecosystem, unquote(w))
					break
				}
			default:
				skip := false
				for _, w := range rest {
					if skip {
						skip = false
						continue
					}
					if (exec == "pip" || exec == "pip3") && (w == "-e" || w == "-r") {
						skip = true
						continue
					}
					if isPackageTarget(w) {
						add(t.ecosystem, unquote(w))
					}
				}
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
