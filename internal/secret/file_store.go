package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Entry names inside the key-value file.
const (
	CurrentKey  = "SECRET_KEY"
	PreviousKey = "PREVIOUS_SECRET_KEY"
)

// FileStore keeps the keyring in a KEY=VALUE file shared with other settings.
// Unrelated lines are preserved on every write.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Read loads the keyring from disk on every call.
func (s *FileStore) Read(_ context.Context) (Keyring, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Keyring{}, ErrUninitialized
		}
		return Keyring{}, fmt.Errorf("read secret file: %w", err)
	}

	lines := splitLines(data)
	current, _ := lookupEntry(lines, CurrentKey)
	if current == "" {
		return Keyring{}, ErrUninitialized
	}
	previous, _ := lookupEntry(lines, PreviousKey)
	return Keyring{Current: Secret(current), Previous: Secret(previous)}, nil
}

// Write rotates next in as the current secret. The file is rewritten through a
// temp file in the same directory and renamed over the original.
func (s *FileStore) Write(ctx context.Context, next Secret) error {
	if err := validate(next); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read secret file: %w", err)
	}

	lines := splitLines(data)
	if current, ok := lookupEntry(lines, CurrentKey); ok && current != "" {
		lines = setEntry(lines, PreviousKey, current)
	}
	lines = setEntry(lines, CurrentKey, string(next))

	return writeFileAtomic(s.path, []byte(strings.Join(lines, "\n")+"\n"))
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.TrimSuffix(string(data), "\n")
	return strings.Split(text, "\n")
}

func lookupEntry(lines []string, key string) (string, bool) {
	for _, line := range lines {
		if value, ok := entryValue(line, key); ok {
			return value, true
		}
	}
	return "", false
}

func setEntry(lines []string, key, value string) []string {
	for i, line := range lines {
		if _, ok := entryValue(line, key); ok {
			lines[i] = key + "=" + value
			return lines
		}
	}
	return append(lines, key+"="+value)
}

// entryValue returns the raw value of a KEY=VALUE line. Values are taken
// verbatim since secrets may contain quotes, '#' and '$'.
func entryValue(line, key string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, key+"=") {
		return "", false
	}
	return strings.TrimRight(trimmed[len(key)+1:], " \t\r"), true
}

func writeFileAtomic(path string, content []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".secret-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp secret file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("write temp secret file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp secret file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp secret file: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp secret file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename secret file: %w", err)
	}
	return nil
}
