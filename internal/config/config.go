package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Workflow contains daemon timing and collaborator pacing settings.
type Workflow struct {
	// FeedbackDelayMinutes is how long after a run the feedback checker
	// polls command outcomes. Valid range 5-60.
	FeedbackDelayMinutes int `toml:"feedback_delay_minutes"`
	// ErrorRetryInterval is the pause in seconds after a failed run before
	// the queue loop resumes waiting for its next tick.
	ErrorRetryInterval int `toml:"error_retry_interval"`
	// RequestTimeout is the per-request HTTP timeout in seconds for
	// Sonarr/Radarr calls.
	RequestTimeout int `toml:"request_timeout"`
	// RateLimitPerSecond caps requests per second per instance.
	RateLimitPerSecond int `toml:"rate_limit_per_second"`
	// DispatchPacingSeconds is the delay inserted between a season-pack
	// dispatch and its individual fallback searches.
	DispatchPacingSeconds int `toml:"dispatch_pacing_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Instance describes one Sonarr or Radarr server.
type Instance struct {
	Name   string `toml:"name"`
	Type   string `toml:"type"`
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// Queue describes one scheduled search queue bound to an instance.
type Queue struct {
	Name     string `toml:"name"`
	Instance string `toml:"instance"`
	Strategy string `toml:"strategy"`

	// CooldownMode is "adaptive" or "flat". CooldownHours is required in
	// flat mode (1-336) and must be absent in adaptive mode.
	CooldownMode  string `toml:"cooldown_mode"`
	CooldownHours int    `toml:"cooldown_hours"`

	MaxItemsPerRun int `toml:"max_items_per_run"`
	IntervalHours  int `toml:"interval_hours"`

	// Season packs bundle eligible episodes of one season into a single
	// SeasonSearch command. Sonarr instances only.
	SeasonPackEnabled   bool `toml:"season_pack_enabled"`
	SeasonPackThreshold int  `toml:"season_pack_threshold"`

	// Exclude lists external ids (series or movie ids) never dispatched.
	Exclude []int64 `toml:"exclude"`
}

// Config encapsulates all configuration values for fetcharr.
type Config struct {
	Paths     Paths      `toml:"paths"`
	Workflow  Workflow   `toml:"workflow"`
	Logging   Logging    `toml:"logging"`
	Instances []Instance `toml:"instances"`
	Queues    []Queue    `toml:"queues"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fetcharr/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("fetcharr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// InstanceByName returns the configured instance with the given name.
func (c *Config) InstanceByName(name string) (Instance, bool) {
	for _, inst := range c.Instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return Instance{}, false
}

// QueueByName returns the configured queue with the given name.
func (c *Config) QueueByName(name string) (Queue, bool) {
	for _, q := range c.Queues {
		if q.Name == name {
			return q, true
		}
	}
	return Queue{}, false
}

// FeedbackDelay returns the configured feedback delay as a duration.
func (c *Config) FeedbackDelay() time.Duration {
	return time.Duration(c.Workflow.FeedbackDelayMinutes) * time.Minute
}

// DispatchPacing returns the bulk-to-fallback pacing delay as a duration.
func (c *Config) DispatchPacing() time.Duration {
	return time.Duration(c.Workflow.DispatchPacingSeconds) * time.Second
}

// Interval returns the scheduling interval for a queue.
func (q Queue) Interval() time.Duration {
	return time.Duration(q.IntervalHours) * time.Hour
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
