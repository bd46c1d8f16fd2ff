// Package config loads, normalizes, and validates labelreel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// Label Studio connection. CLI flags are applied by callers on top of the
// loaded Config.
package config
