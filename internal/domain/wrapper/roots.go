package wrapper

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DecodeFileRootURI decodes a "file://" workspace root URI into an
// absolute filesystem path (§4.3.4: "decodes any file:// URIs (URL-unescape
// path), resolves to absolute paths"). Non-file-scheme input is returned
// unchanged after an attempt to make it absolute.
func DecodeFileRootURI(raw string) string {
	if strings.HasPrefix(raw, "file://") {
		if u, err := url.Parse(raw); err == nil {
			if decoded, err := url.PathUnescape(u.Path); err == nil {
				raw = decoded
			} else {
				raw = u.Path
			}
		}
	}
	if abs, err := filepath.Abs(raw); err == nil {
		return abs
	}
	return raw
}

// StaticRootsProvider returns a RootsProvider that always reports the given
// pre-resolved roots. The wrapper's ideal root source is a live "roots/list"
// request to the MCP client (§4.3.4), but the stdio transport this proxy
// runs under has no outbound-to-client request channel alongside the
// client->server/server->client copy loops it already drives (see
// DESIGN.md) -- so roots are resolved once at process start, either from
// the client's "initialize" params (when the caller plumbs them through) or
// from the current working directory, and held fixed for the process
// lifetime like session_id.
func StaticRootsProvider(roots []string) func(ctx context.Context) []string {
	resolved := make([]string, len(roots))
	for i, r := range roots {
		resolved[i] = DecodeFileRootURI(r)
	}
	return func(ctx context.Context) []string {
		return resolved
	}
}

// CWDRootsProvider falls back to the process working directory as the sole
// workspace root when no explicit roots are configured.
func CWDRootsProvider() func(ctx context.Context) []string {
	wd, err := os.Getwd()
	if err != nil {
		return func(ctx context.Context) []string { return nil }
	}
	return func(ctx context.Context) []string { return []string{wd} }
}
