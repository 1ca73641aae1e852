package config

import (
	"fmt"
	"strings"

	"github.com/dshills/gdbmi/internal/config/loader"
	"github.com/dshills/gdbmi/internal/config/watcher"
)

// Config is the complete gdbmi configuration.
type Config struct {
	Logging LoggingConfig
	Engine  EngineConfig
	GDB     GDBConfig
	Console ConsoleConfig

	// Source is the file the configuration was read from, if any.
	Source string
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string
}

// EngineConfig configures the MI engine.
type EngineConfig struct {
	// TokenPool is the number of correlation tokens.
	TokenPool int
	// SequencePointCommand is the no-op used as a join barrier.
	SequencePointCommand string
	// QueueSize is the capacity of the output line queue.
	QueueSize int
}

// GDBConfig describes how to reach the debugger.
type GDBConfig struct {
	// Path is the debugger executable.
	Path string
	// Args are passed to the debugger after the interpreter flags.
	Args []string
	// Remote is a host:port to connect to instead of starting Path.
	Remote string
	// ConnectAttempts bounds dialing Remote.
	ConnectAttempts int
}

// ConsoleConfig configures the interactive console.
type ConsoleConfig struct {
	// HistoryFile persists console history; empty disables it.
	HistoryFile string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Engine: EngineConfig{
			TokenPool:            1024,
			SequencePointCommand: "-list-features",
			QueueSize:            256,
		},
		GDB: GDBConfig{Path: "gdb", ConnectAttempts: 3},
	}
}

// Load reads the defaults, the file at path (when path is not empty) and
// the GDBMI_ environment, in that order of precedence.
func Load(path string) (*Config, error) {
	return LoadWithFS(loader.DefaultFS(), path)
}

// LoadWithFS is Load over a custom file system.
func LoadWithFS(fsys loader.FileSystem, path string) (*Config, error) {
	merged := defaultMap()

	if path != "" {
		l, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, err
		}
		data, err := l.Load()
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		merged = loader.DeepMerge(merged, data)
	}

	env, err := loader.NewEnvLoader(loader.EnvPrefix).Load()
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	merged = loader.DeepMerge(merged, env)

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "logging.level", Value: c.Logging.Level, Message: "must be debug, info, warn or error"}
	}
	if c.Engine.TokenPool < 2 {
		return &ValidationError{Path: "engine.tokenPool", Value: c.Engine.TokenPool, Message: "must be at least 2"}
	}
	if c.Engine.QueueSize < 1 {
		return &ValidationError{Path: "engine.queueSize", Value: c.Engine.QueueSize, Message: "must be positive"}
	}
	if c.Engine.SequencePointCommand == "" {
		return &ValidationError{Path: "engine.sequencePointCommand", Value: "", Message: "must not be empty"}
	}
	if c.GDB.ConnectAttempts < 1 {
		return &ValidationError{Path: "gdb.connectAttempts", Value: c.GDB.ConnectAttempts, Message: "must be positive"}
	}
	if c.GDB.Path == "" && c.GDB.Remote == "" {
		return &ValidationError{Path: "gdb.path", Value: "", Message: "either gdb.path or gdb.remote is required"}
	}
	return nil
}

func defaultMap() map[string]any {
	d := Default()
	return map[string]any{
		"logging": map[string]any{"level": d.Logging.Level},
		"engine": map[string]any{
			"tokenPool":            int64(d.Engine.TokenPool),
			"sequencePointCommand": d.Engine.SequencePointCommand,
			"queueSize":            int64(d.Engine.QueueSize),
		},
		"gdb":     map[string]any{"path": d.GDB.Path, "remote": "", "connectAttempts": int64(d.GDB.ConnectAttempts)},
		"console": map[string]any{"historyFile": ""},
	}
}

func decode(m map[string]any) (*Config, error) {
	d := &decoder{m: m}
	cfg := &Config{
		Logging: LoggingConfig{Level: d.str("logging.level")},
		Engine: EngineConfig{
			TokenPool:            d.num("engine.tokenPool"),
			SequencePointCommand: d.str("engine.sequencePointCommand"),
			QueueSize:            d.num("engine.queueSize"),
		},
		GDB: GDBConfig{
			Path:            d.str("gdb.path"),
			Args:            d.list("gdb.args"),
			Remote:          d.str("gdb.remote"),
			ConnectAttempts: d.num("gdb.connectAttempts"),
		},
		Console: ConsoleConfig{HistoryFile: d.str("console.historyFile")},
	}
	return cfg, d.err
}

// decoder reads typed values from a merged map, keeping the first error.
type decoder struct {
	m   map[string]any
	err error
}

func (d *decoder) fail(path, expected string, v any) {
	if d.err == nil {
		d.err = &TypeError{Path: path, Expected: expected, Actual: typeName(v)}
	}
}

func (d *decoder) str(path string) string {
	v, ok := getPath(d.m, path)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(path, "string", v)
	}
	return s
}

func (d *decoder) num(path string) int {
	v, ok := getPath(d.m, path)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	default:
		d.fail(path, "int", v)
		return 0
	}
}

func (d *decoder) list(path string) []string {
	v, ok := getPath(d.m, path)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []string:
		return val
	case string:
		return strings.Fields(val)
	case []any:
		out := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				d.fail(path, "[]string", v)
				return nil
			}
			out[i] = s
		}
		return out
	default:
		d.fail(path, "[]string", v)
		return nil
	}
}

// getPath retrieves a value from a nested map using a dot-separated path.
func getPath(m map[string]any, path string) (any, bool) {
	current := any(m)
	for _, part := range strings.Split(path, ".") {
		cm, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = cm[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Watcher reloads a configuration file when it changes.
type Watcher struct {
	path string
	w    *watcher.Watcher
}

// NewWatcher watches path and calls fn with the reloaded configuration, or
// with the error that prevented loading it.
func NewWatcher(path string, fn func(*Config, error)) (*Watcher, error) {
	w, err := watcher.New(watcher.WithErrorHandler(func(err error) { fn(nil, err) }))
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Watch(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			return
		}
		fn(Load(path))
	})
	return &Watcher{path: path, w: w}, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.w.Close()
}
