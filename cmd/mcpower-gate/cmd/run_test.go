package cmd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/audit"
	"github.com/mcpower/mcpower-gate/internal/config"
)

func TestRunCmd_Registered(t *testing.T) {
	// Verify the run command is registered with rootCmd.
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "run" {
			found = true
			break
		}
	}
	if !found {
		t.Error("run command not registered with rootCmd")
	}
}

func TestRunCmd_NoArgsError(t *testing.T) {
	// runAgent should return error when no args are provided.
	err := runAgent(runCmd, nil)
	if err == nil {
		t.Error("runAgent(nil args) should return error")
	}
}

func TestRunCmd_EmptyArgsError(t *testing.T) {
	err := runAgent(runCmd, []string{})
	if err == nil {
		t.Error("runAgent(empty args) should return error")
	}
}

func TestRunCmd_FlagDefaults(t *testing.T) {
	// Verify default flag values.
	serverAddr, err := runCmd.Flags().GetString("server-addr")
	if err != nil {
		t.Fatalf("failed to get server-addr flag: %v", err)
	}
	if serverAddr != "http://localhost:8080" {
		t.Errorf("server-addr default = %q, want %q", serverAddr, "http://localhost:8080")
	}

	cacheTTL, err := runCmd.Flags().GetString("cache-ttl")
	if err != nil {
		t.Fatalf("failed to get cache-ttl flag: %v", err)
	}
	if cacheTTL != "5s" {
		t.Errorf("cache-ttl default = %q, want %q", cacheTTL, "5s")
	}
}

func TestRunCmd_RegistersWithServer(t *testing.T) {
	// Set up a mock server that tracks registration calls.
	var identityCreated bool
	var keyGenerated bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/admin/api/identities":
			identityCreated = true
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{
				"id":   "mock-identity-id",
				"name": "runtime-test",
			})

		case r.Method == "POST" && r.URL.Path == "/admin/api/keys":
			keyGenerated = true
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{
				"id":            "mock-key-id",
				"cleartext_key": "sg_mock_server_key",
			})

		case r.Method == "DELETE" && r.URL.Path == "/admin/api/identities/mock-identity-id":
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer server.Close()

	// Override the server-addr flag for this test.
	oldAddr := runServerAddr
	runServerAddr = server.URL
	defer func() { runServerAddr = oldAddr }()

	// Run with 'echo hello' which should succeed quickly.
	// We use runAgent directly (not through cobra) to avoid os.Exit.
	// We can't easily test the full flow since os.Exit is called in runAgent,
	// so we test registration separately.

	// Verify that RegisterRuntimeKey calls the right endpoints by
	// importing and calling directly (tested in runtime package).
	// Here we just verify the command is properly wired.

	if !identityCreated || !keyGenerated {
		// These won't be set because we haven't actually called runAgent with
		// the mock server -- doing so would exec a child process. The registration
		// is thoroughly tested in internal/domain/runtime/apikey_test.go.
		// Here we verify command wiring only.
		t.Log("Registration endpoints not called (expected -- full flow tested in runtime package)")
	}
}

func TestRunCmd_Description(t *testing.T) {
	if runCmd.Short == "" {
		t.Error("run command missing Short description")
	}
	if runCmd.Long == "" {
		t.Error("run command missing Long description")
	}
}

func TestRunFailModeFlag(t *testing.T) {
	// Verify the fail-mode flag is registered with default "open".
	flag := runCmd.Flags().Lookup("fail-mode")
	if flag == nil {
		t.Fatal("fail-mode flag not registered on runCmd")
	}
	if flag.DefValue != "open" {
		t.Errorf("fail-mode default = %q, want %q", flag.DefValue, "open")
	}
	if flag.Usage == "" {
		t.Error("fail-mode flag missing usage description")
	}
}

func TestRunFailModeValidation(t *testing.T) {
	// Save and restore runFailMode.
	oldMode := runFailMode
	defer func() { runFailMode = oldMode }()

	// Invalid fail-mode should return an error.
	runFailMode = "invalid"
	err := runAgent(runCmd, []string{"echo", "hello"})
	if err == nil {
		t.Fatal("runAgent with invalid fail-mode should return error")
	}
	if !strings.Contains(err.Error(), "invalid fail-mode") {
		t.Errorf("error = %q, want to contain 'invalid fail-mode'", err.Error())
	}
}

func TestRunFrameworkDetectionWiring(t *testing.T) {
	// Verify the command structure supports framework detection.
	// The full flow (with DetectFramework) is tested in internal/domain/runtime.
	// Here we verify the command accepts args that would trigger detection.

	// Verify runCmd accepts arbitrary args (needed for framework detection from command args).
	if runCmd.Args == nil {
		t.Error("runCmd.Args should be set (cobra.ArbitraryArgs)")
	}

	// Verify the Long description mentions framework detection.
	if !strings.Contains(runCmd.Long, "framework") {
		t.Error("runCmd.Long should mention framework detection")
	}

	// Verify the Long description mentions fail-mode.
	if !strings.Contains(runCmd.Long, "fail-mode") {
		t.Error("runCmd.Long should mention fail-mode flag")
	}

	// Verify the Long description mentions proxy auto-setup.
	if !strings.Contains(runCmd.Long, "HTTP_PROXY") {
		t.Error("runCmd.Long should mention HTTP_PROXY auto-setup")
	}
}

func testAuditSinkLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewAuditSink_StdoutOnly(t *testing.T) {
	cfg := &config.OSSConfig{Audit: config.AuditConfig{Output: "stdout"}}

	store, err := newAuditSink(cfg, testAuditSinkLogger())
	if err != nil {
		t.Fatalf("newAuditSink() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, ok := store.(*audit.StdoutStore); !ok {
		t.Errorf("newAuditSink() without a mirror should return *audit.StdoutStore, got %T", store)
	}
}

func TestNewAuditSink_WithSQLiteMirror(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mirror.db")
	cfg := &config.OSSConfig{
		Audit: config.AuditConfig{Output: "stdout", SQLiteMirror: dbPath},
	}

	store, err := newAuditSink(cfg, testAuditSinkLogger())
	if err != nil {
		t.Fatalf("newAuditSink() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, ok := store.(*audit.TeeStore); !ok {
		t.Errorf("newAuditSink() with SQLiteMirror set should return *audit.TeeStore, got %T", store)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected sqlite mirror file to be created at %s: %v", dbPath, err)
	}
}

func TestNewAuditSink_InvalidSQLiteMirrorFallsBackToPrimary(t *testing.T) {
	// A directory path can never be opened as a sqlite file; newAuditSink
	// should log a warning and keep serving audit traffic from the primary
	// sink rather than fail the whole wrapper over a mirror it can't open.
	dir := t.TempDir()
	cfg := &config.OSSConfig{
		Audit: config.AuditConfig{Output: "stdout", SQLiteMirror: dir},
	}

	store, err := newAuditSink(cfg, testAuditSinkLogger())
	if err != nil {
		t.Fatalf("newAuditSink() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, ok := store.(*audit.StdoutStore); !ok {
		t.Errorf("newAuditSink() should fall back to the primary sink on mirror-open failure, got %T", store)
	}
}
