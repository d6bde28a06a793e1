package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	valid := []string{"test-mock", "a", "Project_1", "v1.2", "0"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", ".hidden", "-x", "a/b", `a\b`, "..", "a..b", "a b", "x?", string(make([]byte, 200))}
	for _, name := range invalid {
		err := ValidateName(name)
		assert.ErrorIs(t, err, ErrInvalidName, "%q", name)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	exists, err := s.Exists(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.ReadRaw(ctx, "demo")
	assert.ErrorIs(t, err, ErrNotFound)

	text := "{\n  \"description\": \"demo\",\n  \"endpoints\": {}\n}\n"
	require.NoError(t, s.WriteRaw(ctx, "demo", text))

	exists, err = s.Exists(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.ReadRaw(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, text, got, "stored text is byte-identical")

	path, err := s.Path("demo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "projects", "demo.json"), path)
}

func TestFileStoreCreateReplace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	err := s.Replace(ctx, "p", "v0")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Create(ctx, "p", "v1"))
	err = s.Create(ctx, "p", "v2")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, s.Replace(ctx, "p", "v3"))
	got, err := s.ReadRaw(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "v3", got)
}

func TestFileStoreConcurrentCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Create(ctx, "race", "x"); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrAlreadyExists)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestFileStoreInvalidName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	_, err := s.Exists(ctx, "../escape")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = s.ReadRaw(ctx, "../escape")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.ErrorIs(t, s.WriteRaw(ctx, "../escape", "x"), ErrInvalidName)
}

func TestFileStoreReadOnly(t *testing.T) {
	t.Parallel()

	s := NewFileStore(t.TempDir(), WithReadOnly())
	err := s.WriteRaw(context.Background(), "p", "x")
	assert.True(t, errors.Is(err, ErrReadOnly))
}

func TestFileStoreCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFileStore(t.TempDir())
	assert.ErrorIs(t, s.WriteRaw(ctx, "p", "x"), context.Canceled)
	_, err := s.ReadRaw(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStoreList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names, "missing directory lists nothing")

	for _, name := range []string{"users-v2", "orders", "users-v1"} {
		require.NoError(t, s.WriteRaw(ctx, name, "{}"))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "sub.json"), 0o755))

	names, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users-v1", "users-v2"}, names)

	names, err = s.List(ctx, "users-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"users-v1", "users-v2"}, names)

	names, err = s.List(ctx, "{orders,missing}")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, names)

	_, err = s.List(ctx, "[")
	assert.Error(t, err)
}
