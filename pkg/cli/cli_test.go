package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/testscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockapi/pkg/config"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"mockapi": func() { os.Exit(Main()) },
	})
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: filepath.Join("testdata", "script"),
	})
}

// syncBuffer is a bytes.Buffer safe for the logger and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeStopsOnCancel(t *testing.T) {
	var out, errOut syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	code := make(chan int, 1)
	go func() {
		code <- run(ctx, []string{
			"serve", "--port", "0", "--db-root", t.TempDir(), "--log-format", "json",
		}, &out, &errOut)
	}()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(errOut.String()), []byte("engine started"))
	}, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, errOut.String(), `"msg":"engine started"`)

	cancel()
	select {
	case c := <-code:
		assert.Equal(t, ExitOK, c, errOut.String())
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, errOut.String(), "engine stopped")
}

func TestServeWritesLogFile(t *testing.T) {
	var out, errOut syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logFile := filepath.Join(t.TempDir(), "logs", "mockapi.log")
	code := make(chan int, 1)
	go func() {
		code <- run(ctx, []string{
			"serve", "--port", "0", "--db-root", t.TempDir(), "--log-format", "json", "--log-file", logFile,
		}, &out, &errOut)
	}()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(errOut.String()), []byte("engine started"))
	}, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case c := <-code:
		assert.Equal(t, ExitOK, c, errOut.String())
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"engine started"`)
	assert.Contains(t, string(data), `"msg":"engine stopped"`)
}

func TestServeLogFileFromEnv(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "env.log")
	t.Setenv(config.EnvLogFile, logFile)

	cfg, err := loadSettings(&globalFlags{})
	require.NoError(t, err)
	assert.Equal(t, logFile, cfg.Log.File)

	cfg, err = loadSettings(&globalFlags{logFile: "flag.log"})
	require.NoError(t, err)
	assert.Equal(t, "flag.log", cfg.Log.File, "flag beats env")
}

func TestServeRejectsInvalidSettings(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"serve", "--max-connections", "0"}, &out, &errOut)

	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut.String(), "maxConnections")
}

func TestServeFlagsOverrideSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mockapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nmaxConnections: 3\nhost: 0.0.0.0\n"), 0o644))

	g := &globalFlags{configFile: path, logLevel: "debug"}
	cfg, err := loadSettings(g)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	cmd := newServeCommand(g)
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9100", "--strict-body=false"}))

	f := &serveFlags{}
	f.port, _ = cmd.Flags().GetInt("port")
	f.strictBody, _ = cmd.Flags().GetBool("strict-body")
	f.apply(cmd.Flags(), &cfg)

	assert.Equal(t, 9100, cfg.Port, "flag beats file")
	assert.Equal(t, 3, cfg.MaxConnections, "file value kept without flag")
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.False(t, cfg.StrictBody)
	assert.Equal(t, config.DefaultReadTimeout, cfg.ReadTimeout)
}

func TestUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"frobnicate"}, &out, &errOut)

	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut.String(), "unknown command")
}

func TestValidateExitCode(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"endpoints": 3}`), 0o644))

	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"validate", bad}, &out, &errOut)

	assert.Equal(t, ExitInvalid, code)
	assert.Contains(t, out.String(), "FAIL")
}
