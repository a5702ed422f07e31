package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default returns a configuration populated with sane defaults. Instances
// and queues have no defaults; they must be configured explicitly.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir(),
			LogDir:  defaultLogDir(),
		},
		Workflow: Workflow{
			FeedbackDelayMinutes:  15,
			ErrorRetryInterval:    30,
			RequestTimeout:        30,
			RateLimitPerSecond:    5,
			DispatchPacingSeconds: 2,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "fetcharr")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/share/fetcharr"
	}
	return filepath.Join(home, ".local", "share", "fetcharr")
}

func defaultLogDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "fetcharr")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/state/fetcharr"
	}
	return filepath.Join(home, ".local", "state", "fetcharr")
}

// normalize expands paths and applies per-queue defaults after decoding.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	for i := range c.Instances {
		inst := &c.Instances[i]
		inst.Name = strings.TrimSpace(inst.Name)
		inst.Type = strings.ToLower(strings.TrimSpace(inst.Type))
		inst.URL = strings.TrimRight(strings.TrimSpace(inst.URL), "/")
		inst.APIKey = strings.TrimSpace(inst.APIKey)
	}

	for i := range c.Queues {
		q := &c.Queues[i]
		q.Name = strings.TrimSpace(q.Name)
		q.Instance = strings.TrimSpace(q.Instance)
		q.Strategy = strings.ToLower(strings.TrimSpace(q.Strategy))
		q.CooldownMode = strings.ToLower(strings.TrimSpace(q.CooldownMode))
		if q.CooldownMode == "" {
			q.CooldownMode = "adaptive"
		}
		if q.MaxItemsPerRun == 0 {
			q.MaxItemsPerRun = 10
		}
		if q.IntervalHours == 0 {
			q.IntervalHours = 24
		}
		if q.SeasonPackThreshold == 0 {
			q.SeasonPackThreshold = 3
		}
	}

	names := make(map[string]struct{}, len(c.Queues))
	for _, q := range c.Queues {
		if _, dup := names[q.Name]; dup && q.Name != "" {
			return fmt.Errorf("duplicate queue name %q", q.Name)
		}
		names[q.Name] = struct{}{}
	}
	return nil
}
