package shellcmd

import "strings"

// trigger describes one command shape that marks a segment as a
// package-manager install/run invocation for a given ecosystem, and how to
// pull the explicit target(s) out of it. The table mirrors the ecosystem
// list in the shell-command-parser contract: node, python, rust, go, ruby,
// java/scala, clojure, docker, nix, guix, linux sandboxing, haskell, ocaml,
// dart, php, perl, lua, swift, wasm, cpp, system, version, hpc, build, and a
// handful of single-tool "others".
type trigger struct {
	ecosystem string
	// executable is matched against seg.executable (post-sudo-stripping).
	executable string
	// subcommands, when non-empty, restricts the match to one of these verbs
	// as the first positional token after the executable. Empty means the
	// executable itself is the trigger (e.g. npx, uvx).
	subcommands []string
	// requireFlag, when set, requires this flag (long or short, without
	// leading dashes) to be present on the segment for the trigger to fire.
	requireFlag string
	// flagValueIsTarget means the target is the *value* of requireFlag
	// (`kubectl run --image=foo`), not a positional argument.
	flagValueIsTarget bool
	// firstArgOnly restricts target extraction to the first qualifying
	// positional argument: `docker run IMAGE ...rest-is-the-container-cmd`
	// and bare run-a-package-binary tools (`npx prettier --write .`) alike.
	firstArgOnly bool
	// modulePath requires the target look like a Go module path.
	modulePath bool
	// nestedVerbs are literal tokens that must appear, in order, immediately
	// after the primary subcommand match before target extraction begins --
	// e.g. composer's "global require", yarn's "global add", dart's
	// "pub global activate". A mismatch at any level means the trigger
	// does not fire for this segment.
	nestedVerbs []string
}

var triggers = []trigger{
	// --- node ---
	{ecosystem: "node", executable: "npm", subcommands: []string{"install", "i", "exec"}},
	{ecosystem: "node", executable: "npx", firstArgOnly: true},
	{ecosystem: "node", executable: "pnpm", subcommands: []string{"install", "i"}},
	{ecosystem: "node", executable: "pnpm", subcommands: []string{"dlx"}, firstArgOnly: true},
	{ecosystem: "node", executable: "pnpx", firstArgOnly: true},
	{ecosystem: "node", executable: "yarn", subcommands: []string{"add"}},
	{ecosystem: "node", executable: "yarn", subcommands: []string{"global"}, nestedVerbs: []string{"add"}},
	{ecosystem: "node", executable: "yarn", subcommands: []string{"dlx"}, firstArgOnly: true},
	{ecosystem: "node", executable: "bunx", firstArgOnly: true},
	{ecosystem: "node", executable: "volta", subcommands: []string{"run"}},
	{ecosystem: "node", executable: "component", subcommands: []string{"install"}},
	{ecosystem: "node", executable: "volo", subcommands: []string{"add"}},
	{ecosystem: "node", executable: "ender", subcommands: []string{"build"}},

	// --- python ---
	{ecosystem: "python", executable: "pip", subcommands: []string{"install"}},
	{ecosystem: "python", executable: "pip3", subcommands: []string{"install"}},
	{ecosystem: "python", executable: "pipx", subcommands: []string{"run", "install"}},
	{ecosystem: "python", executable: "poetry", subcommands: []string{"add"}},
	{ecosystem: "python", executable: "poetry", subcommands: []string{"run"}},
	{ecosystem: "python", executable: "uv", subcommands: []string{"add"}},
	{ecosystem: "python", executable: "uv", subcommands: []string{"pip"}},
	{ecosystem: "python", executable: "uvx", firstArgOnly: true},
	{ecosystem: "python", executable: "conda", subcommands: []string{"install"}},
	{ecosystem: "python", executable: "mamba", subcommands: []string{"install"}},
	{ecosystem: "python", executable: "micromamba", subcommands: []string{"install"}},
	{ecosystem: "python", executable: "pyenv", subcommands: []string{"install"}},
	{ecosystem: "python", executable: "pixi", subcommands: []string{"run"}},

	// --- rust ---
	{ecosystem: "rust", executable: "cargo", subcommands: []string{"add", "install"}},
	{ecosystem: "rust", executable: "cargo", subcommands: []string{"run"}, requireFlag: "example", flagValueIsTarget: true},
	{ecosystem: "rust", executable: "cargo-binstall", firstArgOnly: true},
	{ecosystem: "rust", executable: "cargo-quickinstall", firstArgOnly: true},
	{ecosystem: "rust", executable: "rustup", subcommands: []string{"run"}},

	// --- go ---
	{ecosystem: "go", executable: "go", subcommands: []string{"install", "run"}, modulePath: true},

	// --- ruby ---
	{ecosystem: "ruby", executable: "gem", subcommands: []string{"install"}},
	{ecosystem: "ruby", executable: "bundle", subcommands: []string{"add"}},
	{ecosystem: "ruby", executable: "bundle", subcommands: []string{"exec"}},
	{ecosystem: "ruby", executable: "rbenv", subcommands: []string{"install"}},

	// --- java/scala ---
	{ecosystem: "java/scala", executable: "jbang", firstArgOnly: true},
	{ecosystem: "java/scala", executable: "coursier", subcommands: []string{"launch"}},
	{ecosystem: "java/scala", executable: "cs", subcommands: []string{"launch"}},
	{ecosystem: "java/scala", executable: "jgo", firstArgOnly: true},
	{ecosystem: "java/scala", executable: "mill", subcommands: []string{"run"}},
	{ecosystem: "java/scala", executable: "ammonite", firstArgOnly: true},
	{ecosystem: "java/scala", executable: "sbt", firstArgOnly: true},

	// --- clojure ---
	{ecosystem: "clojure", executable: "clj", firstArgOnly: true},
	{ecosystem: "clojure", executable: "bb", firstArgOnly: true},
	{ecosystem: "clojure", executable: "babashka", firstArgOnly: true},

	// --- docker ---
	{ecosystem: "docker", executable: "docker", subcommands: []string{"run"}, firstArgOnly: true},
	{ecosystem: "docker", executable: "podman", subcommands: []string{"run"}, firstArgOnly: true},
	{ecosystem: "docker", executable: "kubectl", subcommands: []string{"run"}, requireFlag: "image", flagValueIsTarget: true},

	// --- nix ---
	{ecosystem: "nix", executable: "nix", subcommands: []string{"run", "shell"}},
	{ecosystem: "nix", executable: "nix-shell", requireFlag: "p"},

	// --- guix ---
	{ecosystem: "guix", executable: "guix", subcommands: []string{"shell"}},

	// --- linux sandboxing ---
	{ecosystem: "linux", executable: "flatpak", subcommands: []string{"run"}},
	{ecosystem: "linux", executable: "snap", subcommands: []string{"run"}},

	// --- haskell ---
	{ecosystem: "haskell", executable: "cabal", subcommands: []string{"run"}},
	{ecosystem: "haskell", executable: "stack", subcommands: []string{"run"}, requireFlag: "package", flagValueIsTarget: true},
	{ecosystem: "haskell", executable: "ghcup", subcommands: []string{"install"}},

	// --- ocaml ---
	{ecosystem: "ocaml", executable: "opam", subcommands: []string{"install"}},
	{ecosystem: "ocaml", executable: "esy", firstArgOnly: true},

	// --- dart ---
	{ecosystem: "dart", executable: "dart", subcommands: []string{"pub"}, nestedVerbs: []string{"global", "activate"}},
	{ecosystem: "dart", executable: "flutter", subcommands: []string{"pub"}, nestedVerbs: []string{"run"}},

	// --- php ---
	{ecosystem: "php", executable: "composer", subcommands: []string{"global"}, nestedVerbs: []string{"require"}},
	{ecosystem: "php", executable: "phive", subcommands: []string{"install"}},

	// --- perl ---
	{ecosystem: "perl", executable: "cpanm"},
	{ecosystem: "perl", executable: "cpm", subcommands: []string{"install"}},
	{ecosystem: "perl", executable: "ppm", subcommands: []string{"install"}},

	// --- lua ---
	{ecosystem: "lua", executable: "luarocks", subcommands: []string{"install"}},

	// --- swift ---
	{ecosystem: "swift", executable: "mint", subcommands: []string{"run"}},
	{ecosystem: "swift", executable: "marathon", subcommands: []string{"run"}},

	// --- wasm ---
	{ecosystem: "wasm", executable: "wasmer", subcommands: []string{"run"}},
	{ecosystem: "wasm", executable: "wapm", subcommands: []string{"install"}},

	// --- cpp ---
	{ecosystem: "cpp", executable: "conan", subcommands: []string{"install"}},
	{ecosystem: "cpp", executable: "vcpkg", subcommands: []string{"install"}},
	{ecosystem: "cpp", executable: "clib", subcommands: []string{"install"}},
	{ecosystem: "cpp", executable: "buckaroo", subcommands: []string{"install"}},

	// --- system ---
	{ecosystem: "system", executable: "brew", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "apt", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "apt-get", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "yum", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "dnf", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "pacman", requireFlag: "S"},
	{ecosystem: "system", executable: "zypper", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "apk", subcommands: []string{"add"}},
	{ecosystem: "system", executable: "pkg", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "emerge"},
	{ecosystem: "system", executable: "xbps-install"},
	{ecosystem: "system", executable: "pkgin", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "opkg", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "scoop", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "winget", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "choco", subcommands: []string{"install"}},
	{ecosystem: "system", executable: "chocolatey", subcommands: []string{"install"}},

	// --- version managers ---
	{ecosystem: "version", executable: "asdf", subcommands: []string{"install"}},
	{ecosystem: "version", executable: "volta", subcommands: []string{"install"}},
	{ecosystem: "version", executable: "fnm", subcommands: []string{"use"}},
	{ecosystem: "version", executable: "juliaup", subcommands: []string{"add"}},

	// --- hpc ---
	{ecosystem: "hpc", executable: "spack", subcommands: []string{"install"}},
	{ecosystem: "hpc", executable: "easybuild"},

	// --- build ---
	{ecosystem: "build", executable: "bazel", subcommands: []string{"run"}},
	{ecosystem: "build", executable: "buck2", subcommands: []string{"run"}},
	{ecosystem: "build", executable: "earthly"},
	{ecosystem: "build", executable: "pants", subcommands: []string{"run"}},

	// --- others ---
	{ecosystem: "elm", executable: "elm", subcommands: []string{"install"}},
	{ecosystem: "zig", executable: "zig", subcommands: []string{"fetch"}},
	{ecosystem: "nim", executable: "nimble", subcommands: []string{"install"}},
	{ecosystem: "racket", executable: "raco", subcommands: []string{"pkg"}},
	{ecosystem: "lisp", executable: "ros", subcommands: []string{"install"}},
	{ecosystem: "tex", executable: "tlmgr", subcommands: []string{"install"}},
}

// subcommandExecutables is every executable that is matched against one or
// more subcommand verbs in the trigger table above; Parse uses this set to
// decide whether to pull a leading positional argument out as the
// segment's subcommand verb.
var subcommandExecutables = buildSubcommandExecutables()

func buildSubcommandExecutables() map[string]bool {
	set := make(map[string]bool)
	for _, t := range triggers {
		if len(t.subcommands) > 0 {
			set[t.executable] = true
		}
	}
	return set
}

// isSubcommandTool reports whether executable is invoked in the
// "tool verb target..." shape (npm install x, cargo add y) as opposed to
// the bare "tool target..." shape (npx x, uvx y).
func isSubcommandTool(executable string) bool {
	return subcommandExecutables[strings.ToLower(executable)]
}
