// Package config loads, defaults, and validates the fetcharr TOML
// configuration: paths, workflow timing, logging, catalog instances, and
// per-queue search settings. All range and cross-field rules are enforced
// at load time so the daemon never has to re-validate during a run.
package config
