// Package config provides the configuration system for enquote.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────────┐
//	│  6. Runtime overrides           │  ← flags, Lua set_mode, g:enquote_active
//	├─────────────────────────────────┤
//	│  5. Environment Variables       │  ← ENQUOTE_*
//	├─────────────────────────────────┤
//	│  4. VS Code workspace settings  │  ← .vscode/settings.json (latex-workshop.*)
//	├─────────────────────────────────┤
//	│  3. Workspace file              │  ← .enquote.toml / .enquote.yaml
//	├─────────────────────────────────┤
//	│  2. User file                   │  ← ~/.config/enquote/config.toml
//	├─────────────────────────────────┤
//	│  1. Built-in Defaults           │  ← Lowest priority
//	└─────────────────────────────────┘
//
// # Sub-packages
//
//   - loader: file and environment loaders (TOML, YAML, settings.json, env)
//   - registry: settings definitions with defaults and validation
//   - layer: layer management and merging
//
// # Basic Usage
//
//	cfg := config.New(config.WithWorkspace(dir), config.WithPublisher(bus))
//	if err := cfg.Load(ctx); err != nil {
//	    return err
//	}
//
//	mode, err := cfg.GetString("enquote.active")
//
// Values are coerced to the registered setting type as layers load, so
// `active = true` in TOML reads back as the string "true". Values that fail
// validation are dropped from their layer and reported by Problems, as are
// files that cannot be read or parsed.
//
// # Change Notification
//
// Set, Unset and Reload publish config.changed for every effective value
// that changed. Watch reloads the file layers when they change on disk.
package config
