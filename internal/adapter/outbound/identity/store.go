// Package identity implements the app-UID store (C9): a stable,
// write-once per-workspace UUID persisted at
// "<workspace>/.mcpower/app_uid", falling back to "~/.mcpower/app_uid"
// when no workspace root is known (§3, §6.4).
package identity

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	dirName  = ".mcpower"
	fileName = "app_uid"
)

// Store reads or creates the app_uid file for a directory.
type Store struct {
	logger *slog.Logger
}

// NewStore creates an identity Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Resolve returns the app_uid for the given workspace root. An empty
// workspaceRoot falls back to the user's home directory. The file's
// content, once a valid UUID, is never rewritten; an absent or invalid
// file is (re)created with a fresh UUID and a warning is logged for the
// invalid case. The read-validate-create sequence holds an exclusive
// advisory file lock so concurrent short-lived hook subprocesses racing
// to create the file don't corrupt it or each produce a different UUID.
func (s *Store) Resolve(workspaceRoot string) (string, error) {
	base := workspaceRoot
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		base = home
	}

	dir := filepath.Join(base, dirName)
	path := filepath.Join(dir, fileName)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return "", fmt.Errorf("open app_uid: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := flockLock(f.Fd()); err != nil {
		return "", fmt.Errorf("lock app_uid: %w", err)
	}
	defer func() { _ = flockUnlock(f.Fd()) }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read app_uid: %w", err)
	}
	id := strings.TrimSpace(string(raw))
	if _, parseErr := uuid.Parse(id); parseErr == nil {
		return id, nil
	}
	if len(raw) > 0 {
		s.logger.Warn("app_uid file content is not a valid UUID, regenerating", "path", path)
	}

	id = uuid.NewString()
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek app_uid: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return "", fmt.Errorf("truncate app_uid: %w", err)
	}
	if _, err := f.WriteString(id); err != nil {
		return "", fmt.Errorf("write app_uid: %w", err)
	}
	return id, nil
}
