// Package config provides search and logging settings for scour.
//
// Settings are resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority (applied by the CLI)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← SCOUR_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← .toml, .yaml or .yml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Basic Usage
//
//	cfg, err := config.LoadWithEnv("scour.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine := search.NewEngine(vfs.NewOSFS(), cfg.SearchOptions())
//
// # Live Reload
//
// A Watcher reloads the file when it changes and hands the new settings to
// a callback:
//
//	w, err := config.NewWatcher("scour.toml", func(cfg *config.Config) {
//	    sched.SetOptions(cfg.SearchOptions())
//	})
//	defer w.Close()
//
// Reload affects searches submitted afterwards; it does not re-scan the
// workspace.
package config
