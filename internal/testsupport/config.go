// Package testsupport provides helpers shared by package tests: temp-dir
// configs and pre-opened tracking stores.
package testsupport

import (
	"path/filepath"
	"testing"

	"fetcharr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithInstance appends an instance to the test config.
func WithInstance(inst config.Instance) ConfigOption {
	return func(c *config.Config) {
		c.Instances = append(c.Instances, inst)
	}
}

// WithQueue appends a queue to the test config.
func WithQueue(q config.Queue) ConfigOption {
	return func(c *config.Config) {
		c.Queues = append(c.Queues, q)
	}
}
