// Package app provides the main application structure and coordination
// for gdbmi. It wires the configuration, logger, metrics and debug session
// together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/gdbmi/internal/config"
	"github.com/dshills/gdbmi/internal/integration/debug"
	"github.com/dshills/gdbmi/internal/integration/debug/mi"
	"github.com/dshills/gdbmi/internal/logging"
)

// probeTimeout bounds "gdb --version" during startup.
const probeTimeout = 5 * time.Second

// Application is the central coordinator for one debugger connection.
type Application struct {
	mu sync.RWMutex

	config   *config.Config
	log      *logging.Logger
	metrics  *Metrics
	session  *debug.Session
	watcher  *config.Watcher
	out      io.Writer
	outMu    sync.Mutex
	commands []command

	running      atomic.Bool
	shutdownOnce sync.Once

	opts Options
}

// Options configures the application. Non-empty fields override the
// loaded configuration.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// GDBPath overrides gdb.path.
	GDBPath string

	// Args overrides gdb.args when not empty.
	Args []string

	// Remote overrides gdb.remote.
	Remote string

	// LogLevel overrides logging.level.
	LogLevel string

	// Output receives console output. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Transport is used instead of starting or dialing a debugger.
	Transport mi.Transport

	// Dump writes every parsed record as JSON instead of formatted output.
	Dump bool

	// JSONPath prints only the part of each command result selected by
	// this gjson path, for example "results.bkpt.number".
	JSONPath string

	// Watch reloads the configuration file when it changes.
	Watch bool
}

// New creates a new Application. A nil cfg is loaded from opts.ConfigPath.
func New(opts Options, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, &InitError{Component: "config", Err: err}
		}
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	app := &Application{
		opts:     opts,
		config:   cfg,
		out:      opts.Output,
		commands: builtinCommands(),
		metrics:  NewMetrics(),
		log: logging.New(logging.Config{
			Level:  logging.ParseLevel(cfg.Logging.Level),
			Output: opts.LogOutput,
			Prefix: "gdbmi",
		}),
	}

	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.GDBPath != "" {
		cfg.GDB.Path = opts.GDBPath
	}
	if len(opts.Args) > 0 {
		cfg.GDB.Args = opts.Args
	}
	if opts.Remote != "" {
		cfg.GDB.Remote = opts.Remote
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
}

// bootstrap connects the session and starts the config watcher.
func (app *Application) bootstrap() error {
	sc := debug.SessionConfig{
		PoolSize:             app.config.Engine.TokenPool,
		SequencePointCommand: app.config.Engine.SequencePointCommand,
		QueueSize:            app.config.Engine.QueueSize,
		Logger:               app.log,
		Recorder:             app.metrics,
	}

	var err error
	switch {
	case app.opts.Transport != nil:
		app.session = debug.NewSession(app.opts.Transport, sc)
	case app.config.GDB.Remote != "":
		rc := debug.DefaultRetryConfig()
		rc.MaxAttempts = app.config.GDB.ConnectAttempts
		app.session, err = debug.DialSession(context.Background(), sc, app.config.GDB.Remote, rc)
	default:
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		dialect, perr := debug.ProbeDialect(ctx, app.config.GDB.Path)
		cancel()
		if perr != nil {
			app.log.Warn("probe debugger version: %v", perr)
		}
		app.session, err = debug.NewStdioSession(sc, dialect, app.config.GDB.Path, app.config.GDB.Args...)
	}
	if err != nil {
		return &InitError{Component: "session", Err: err}
	}
	app.session.SetHandlers(app.sessionHandlers())
	app.log.Info("session %s started", app.session.ID())

	if app.opts.Watch && app.config.Source != "" {
		app.watcher, err = config.NewWatcher(app.config.Source, app.reload)
		if err != nil {
			// Live reload is optional.
			app.log.Warn("watch %s: %v", app.config.Source, err)
		} else {
			app.log.Debug("watching %s for changes", app.watcher.Path())
		}
	}
	return nil
}

// reload applies a changed configuration file. Only the log level takes
// effect without a restart.
func (app *Application) reload(cfg *config.Config, err error) {
	if err != nil {
		app.log.Warn("reload configuration: %v", err)
		return
	}
	applyOverrides(cfg, Options{LogLevel: app.opts.LogLevel})

	app.mu.Lock()
	app.config = cfg
	app.mu.Unlock()

	app.log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	app.log.Info("configuration reloaded from %s", cfg.Source)
}

// Run processes debugger output until the transport ends or ctx is
// cancelled. Cancellation is a normal exit.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	err := app.session.Run(ctx)
	snap := app.metrics.Snapshot()
	app.log.Debug("processed %d lines, %d records, %d parse failures, peak %d in flight",
		snap.Lines, snap.Records, snap.ParseFailures, snap.PeakInFlight)

	if err != nil && !errors.Is(err, context.Canceled) {
		return NewOperationError("run", "session", err)
	}
	return nil
}

// Shutdown closes the watcher and the session. It is safe to call more
// than once.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		if app.watcher != nil {
			if err := app.watcher.Close(); err != nil {
				app.log.Warn("close watcher: %v", err)
			}
		}
		if err := app.session.Close(); err != nil && !errors.Is(err, mi.ErrClosed) {
			app.log.Warn("close session: %v", err)
		}
	})
}

// IsRunning returns true while Run is processing output.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}

// Session returns the debug session.
func (app *Application) Session() *debug.Session {
	return app.session
}

// Metrics returns the engine metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.log
}

// printf writes to the console output. Session callbacks and the command
// loop write concurrently.
func (app *Application) printf(format string, args ...any) {
	app.outMu.Lock()
	defer app.outMu.Unlock()
	fmt.Fprintf(app.out, format, args...)
}

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
