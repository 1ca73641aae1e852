package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dshills/gdbmi/internal/config"
	"github.com/dshills/gdbmi/internal/integration/debug/mi"
	"github.com/dshills/gdbmi/internal/logging"
)

// fakeTransport records sent commands; output is fed to the session
// directly or queued on lines.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []string
	lines  chan string
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{lines: make(chan string, 64)}
}

func (f *fakeTransport) Send(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return mi.ErrClosed
	}
	f.sent = append(f.sent, line)
	return nil
}

func (f *fakeTransport) Receive() (string, error) {
	line, ok := <-f.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.lines)
	}
	return nil
}

func (f *fakeTransport) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.sent...)
}

func (f *fakeTransport) Last() string {
	sent := f.Sent()
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
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

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func newTestApp(t *testing.T) (*Application, *fakeTransport, *syncBuffer) {
	t.Helper()
	transport := newFakeTransport()
	out := &syncBuffer{}
	app, err := New(Options{Transport: transport, Output: out, LogOutput: io.Discard}, config.Default())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(app.Shutdown)
	return app, transport, out
}

func TestNewApplication(t *testing.T) {
	app, _, _ := newTestApp(t)

	if app.Session() == nil {
		t.Fatal("expected session to be initialized")
	}
	if app.Metrics() == nil {
		t.Error("expected metrics to be initialized")
	}
	if app.Logger().Level() != logging.LevelInfo {
		t.Errorf("expected info level, got %s", app.Logger().Level())
	}
	if app.IsRunning() {
		t.Error("expected IsRunning() to be false before Run()")
	}
}

func TestNew_Overrides(t *testing.T) {
	app, err := New(Options{
		Transport: newFakeTransport(),
		GDBPath:   "gdb-multiarch",
		LogLevel:  "debug",
		LogOutput: io.Discard,
		Output:    io.Discard,
	}, config.Default())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer app.Shutdown()

	if app.Config().GDB.Path != "gdb-multiarch" {
		t.Errorf("expected gdb path override, got %q", app.Config().GDB.Path)
	}
	if app.Logger().Level() != logging.LevelDebug {
		t.Errorf("expected debug level, got %s", app.Logger().Level())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.TokenPool = 0

	_, err := New(Options{Transport: newFakeTransport(), LogOutput: io.Discard}, cfg)
	var initErr *InitError
	if !errors.As(err, &initErr) || initErr.Component != "config" {
		t.Fatalf("expected config InitError, got %v", err)
	}
	if !errors.Is(err, config.ErrValidationFailed) {
		t.Error("expected the validation error to be wrapped")
	}
}

func TestApplication_RunEndsOnShutdown(t *testing.T) {
	app, transport, out := newTestApp(t)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	transport.lines <- `~"Hello\n"`
	transport.lines <- "(gdb)"

	deadline := time.Now().Add(2 * time.Second)
	for out.String() != "Hello\n" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if out.String() != "Hello\n" {
		t.Errorf("expected console output, got %q", out.String())
	}

	app.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Shutdown()")
	}

	if n := app.Metrics().Snapshot().Lines; n != 2 {
		t.Errorf("expected 2 lines recorded, got %d", n)
	}
}

func TestApplication_RunCancelled(t *testing.T) {
	app, _, _ := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected cancellation to be a normal exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestApplication_ShutdownIdempotent(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Shutdown()
	app.Shutdown()
	app.Shutdown()
}

func TestApplication_Reload(t *testing.T) {
	app, _, _ := newTestApp(t)

	cfg := config.Default()
	cfg.Logging.Level = "debug"
	app.reload(cfg, nil)
	if app.Logger().Level() != logging.LevelDebug {
		t.Errorf("expected debug level after reload, got %s", app.Logger().Level())
	}
	if app.Config() != cfg {
		t.Error("expected the reloaded configuration to be current")
	}

	app.reload(nil, errors.New("parse error"))
	if app.Config() != cfg {
		t.Error("a failed reload should keep the current configuration")
	}
}

func TestApplication_ReloadKeepsFlagLevel(t *testing.T) {
	app, err := New(Options{Transport: newFakeTransport(), LogLevel: "error", LogOutput: io.Discard}, config.Default())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer app.Shutdown()

	cfg := config.Default()
	cfg.Logging.Level = "debug"
	app.reload(cfg, nil)
	if app.Logger().Level() != logging.LevelError {
		t.Errorf("command line level should win, got %s", app.Logger().Level())
	}
}

func TestApplication_WatchesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdbmi.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := New(Options{
		ConfigPath: path,
		Watch:      true,
		Transport:  newFakeTransport(),
		LogOutput:  io.Discard,
		Output:     io.Discard,
	}, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer app.Shutdown()

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for app.Logger().Level() != logging.LevelDebug && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if app.Logger().Level() != logging.LevelDebug {
		t.Error("log level was not reloaded")
	}
}
