package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockapi/pkg/metrics"
	"github.com/getmockd/mockapi/pkg/project"
	"github.com/getmockd/mockapi/pkg/store"
)

func projectText(description string) string {
	return fmt.Sprintf(`{"description": %q, "endpoints": {"ping": {"when": [{"method": "GET", "response": {"status": 200, "headers": {}, "body": "pong"}}]}}}`, description)
}

// fakeSource is an in-memory Source that counts reads and can hold them.
type fakeSource struct {
	mu    sync.Mutex
	texts map[string]string
	reads atomic.Int32
	gate  chan struct{} // when set, reads block until it is closed
}

func newFakeSource() *fakeSource {
	return &fakeSource{texts: make(map[string]string)}
}

func (f *fakeSource) set(name, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts[name] = text
}

func (f *fakeSource) ReadRaw(ctx context.Context, name string) (string, error) {
	f.reads.Add(1)
	f.mu.Lock()
	gate := f.gate
	text, ok := f.texts[name]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return text, nil
}

func TestGetLoadsOnceAndShares(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set("demo", projectText("v1"))
	c := New(src)

	first, err := c.Get(context.Background(), "demo")
	require.NoError(t, err)
	second, err := c.Get(context.Background(), "demo")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.reads.Load())
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Cached("demo"))
}

func TestGetMissingProject(t *testing.T) {
	t.Parallel()

	c := New(newFakeSource())
	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Equal(t, 0, c.Len())
}

func TestGetParseErrorNotCached(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set("bad", `{"description": 1}`)
	c := New(src)

	_, err := c.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, project.IsParseError(err))
	assert.False(t, c.Cached("bad"))

	src.set("bad", projectText("fixed"))
	cfg, err := c.Get(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, "fixed", cfg.Description)
}

func TestGetSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	c := New(sourceFunc(func(context.Context, string) (string, error) { return "", boom }))

	_, err := c.Get(context.Background(), "p")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrProjectNotFound)
}

type sourceFunc func(ctx context.Context, name string) (string, error)

func (f sourceFunc) ReadRaw(ctx context.Context, name string) (string, error) { return f(ctx, name) }

func TestInvalidateReloads(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set("demo", projectText("v1"))
	c := New(src)

	cfg, err := c.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "v1", cfg.Description)

	src.set("demo", projectText("v2"))
	cfg, err = c.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "v1", cfg.Description, "served from cache until invalidated")

	c.Invalidate("demo")
	assert.False(t, c.Cached("demo"))

	cfg, err = c.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "v2", cfg.Description)
	assert.Equal(t, int32(2), src.reads.Load())

	assert.NotPanics(t, func() { c.Invalidate("never-loaded") })
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set("demo", projectText("v1"))
	src.gate = make(chan struct{})
	c := New(src)

	const n = 20
	var wg sync.WaitGroup
	results := make([]*project.Config, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := c.Get(context.Background(), "demo")
			assert.NoError(t, err)
			results[i] = cfg
		}()
	}

	// Let the first loader start before releasing it.
	require.Eventually(t, func() bool { return src.reads.Load() >= 1 }, timeout, tick)
	close(src.gate)
	wg.Wait()

	assert.LessOrEqual(t, src.reads.Load(), int32(n))
	for _, cfg := range results {
		require.NotNil(t, cfg)
		assert.Equal(t, "v1", cfg.Description)
	}
	assert.Equal(t, 1, c.Len())
}

func TestInvalidateDuringLoadDoesNotCacheStale(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set("demo", projectText("old"))
	src.gate = make(chan struct{})
	c := New(src)

	done := make(chan *project.Config)
	go func() {
		cfg, err := c.Get(context.Background(), "demo")
		assert.NoError(t, err)
		done <- cfg
	}()
	require.Eventually(t, func() bool { return src.reads.Load() == 1 }, timeout, tick)

	// A write lands while the old text is being loaded.
	c.Invalidate("demo")
	close(src.gate)
	stale := <-done
	assert.Equal(t, "old", stale.Description, "the in-flight request may see the old config")
	assert.False(t, c.Cached("demo"), "but it must not be cached")

	src.mu.Lock()
	src.gate = nil
	src.texts["demo"] = projectText("new")
	src.mu.Unlock()

	cfg, err := c.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Description)
}

func TestCacheMetrics(t *testing.T) {
	t.Parallel()

	set := metrics.New()
	src := newFakeSource()
	src.set("demo", projectText("v1"))
	c := New(src, WithMetrics(set))

	_, _ = c.Get(context.Background(), "demo")
	_, _ = c.Get(context.Background(), "demo")
	_, _ = c.Get(context.Background(), "missing")
	c.Invalidate("demo")

	text := set.Registry.Text()
	assert.Contains(t, text, `mockapi_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, text, `mockapi_cache_lookups_total{result="miss"} 2`)
	assert.Contains(t, text, `mockapi_cache_loads_total{result="ok"} 1`)
	assert.Contains(t, text, `mockapi_cache_loads_total{result="not_found"} 1`)
	assert.Contains(t, text, "mockapi_cache_invalidations_total 1\n")
	assert.Contains(t, text, "mockapi_cache_entries 0\n")
}

func TestWithFileStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := store.NewFileStore(t.TempDir())
	require.NoError(t, fs.Create(ctx, "demo", projectText("on disk")))

	c := New(fs)
	cfg, err := c.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "on disk", cfg.Description)

	_, err = c.Get(ctx, "../etc")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
