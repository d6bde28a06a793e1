package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/mockapi/pkg/logging"
)

// FileStore implements Store on the local file system.
type FileStore struct {
	root     string
	readOnly bool
	log      *slog.Logger

	// mu serializes writers so that Create and Replace can check and write
	// without another writer slipping in between.
	mu sync.Mutex
}

var _ Store = (*FileStore)(nil)

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *FileStore) {
		if log != nil {
			s.log = log
		}
	}
}

// WithReadOnly makes every write fail with ErrReadOnly.
func WithReadOnly() Option {
	return func(s *FileStore) { s.readOnly = true }
}

// NewFileStore creates a store rooted at root. The directory is created on
// first write.
func NewFileStore(root string, opts ...Option) *FileStore {
	s := &FileStore{root: root, log: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the database root directory.
func (s *FileStore) Root() string { return s.root }

// Dir returns the directory holding project files.
func (s *FileStore) Dir() string { return filepath.Join(s.root, ProjectsDir) }

// Path returns the file path of a project.
func (s *FileStore) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir(), name+Ext), nil
}

// Exists implements Store.
func (s *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// ReadRaw implements Store.
func (s *FileStore) ReadRaw(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", err
	}
	return string(data), nil
}

// WriteRaw implements Store.
func (s *FileStore) WriteRaw(ctx context.Context, name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, name, text)
}

// Create implements Store.
func (s *FileStore) Create(ctx context.Context, name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	return s.write(ctx, name, text)
}

// Replace implements Store.
func (s *FileStore) Replace(ctx context.Context, name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.write(ctx, name, text)
}

// write stores text atomically: it goes to a temporary file in the same
// directory which is then renamed over the target. Callers hold s.mu.
func (s *FileStore) write(ctx context.Context, name, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create projects directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir(), "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write project %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write project %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write project %s: %w", name, err)
	}

	s.log.Debug("project written", "project", name, "bytes", len(text))
	return nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), Ext)
		if ValidateName(name) != nil {
			continue
		}
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
