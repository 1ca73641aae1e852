// Package config loads the gdbmi configuration.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment (GDBMI_*)   │  ← Highest priority
//	├─────────────────────────────┤
//	│  2. Config file (.toml/.yaml)│
//	├─────────────────────────────┤
//	│  1. Built-in defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller on top of the result.
//
// # Sub-packages
//
//   - loader: TOML, YAML and environment loaders
//   - watcher: fsnotify based file watching for live reload
//
// # Usage
//
//	cfg, err := config.Load("gdbmi.toml")
//	if err != nil {
//	    return err
//	}
//
//	w, err := config.NewWatcher("gdbmi.toml", func(cfg *config.Config, err error) {
//	    if err == nil {
//	        logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
//	    }
//	})
package config
