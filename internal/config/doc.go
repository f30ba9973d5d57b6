// Package config loads editing-session settings from TOML or YAML files and
// watches them for changes.
//
// A missing file is not an error; Load returns Default in that case:
//
//	cfg, err := config.Load("linekeeper.toml")
//	if err != nil {
//	    return err
//	}
//
// Watcher reports debounced changes of watched files:
//
//	w, _ := config.NewWatcher(200 * time.Millisecond)
//	defer w.Close()
//	w.Watch("linekeeper.toml")
//	go w.Run(ctx, func(path string) { ... })
package config
