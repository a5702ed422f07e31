package main

import (
	"fmt"

	"fetcharr/internal/config"
	"fetcharr/internal/tracking"
)

// commandContext lazily loads configuration shared by all subcommands.
type commandContext struct {
	configFlag *string

	cfg     *config.Config
	cfgPath string
	exists  bool
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads and caches the configuration.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, exists, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = resolvedPath
	c.exists = exists
	return cfg, nil
}

// openStore opens the tracking database for the loaded configuration.
func (c *commandContext) openStore() (*tracking.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := tracking.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open tracking store: %w", err)
	}
	return store, nil
}
