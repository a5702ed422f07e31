package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
[workflow]
feedback_delay_minutes = 20

[[instances]]
name = "sonarr-main"
type = "sonarr"
url = "http://localhost:8989/"
api_key = "secret"

[[queues]]
name = "missing"
instance = "sonarr-main"
strategy = "missing"
`

func TestLoadAppliesDefaultsAndNormalizes(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}

	if cfg.Workflow.FeedbackDelayMinutes != 20 {
		t.Fatalf("FeedbackDelayMinutes = %d, want 20", cfg.Workflow.FeedbackDelayMinutes)
	}
	if cfg.Workflow.RateLimitPerSecond != 5 {
		t.Fatalf("RateLimitPerSecond = %d, want default 5", cfg.Workflow.RateLimitPerSecond)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("logging defaults not applied: %+v", cfg.Logging)
	}

	inst, ok := cfg.InstanceByName("sonarr-main")
	if !ok {
		t.Fatal("instance sonarr-main not found")
	}
	if inst.URL != "http://localhost:8989" {
		t.Fatalf("instance URL not trimmed: %q", inst.URL)
	}

	q, ok := cfg.QueueByName("missing")
	if !ok {
		t.Fatal("queue missing not found")
	}
	if q.CooldownMode != "adaptive" {
		t.Fatalf("CooldownMode = %q, want adaptive default", q.CooldownMode)
	}
	if q.MaxItemsPerRun != 10 || q.IntervalHours != 24 || q.SeasonPackThreshold != 3 {
		t.Fatalf("queue defaults not applied: %+v", q)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if exists {
		t.Fatal("expected missing file to be reported as absent")
	}
	if cfg.Workflow.FeedbackDelayMinutes != 15 {
		t.Fatalf("FeedbackDelayMinutes = %d, want default 15", cfg.Workflow.FeedbackDelayMinutes)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "feedback delay below range",
			mutate:  func(c *Config) { c.Workflow.FeedbackDelayMinutes = 4 },
			wantErr: "feedback_delay_minutes",
		},
		{
			name:    "feedback delay above range",
			mutate:  func(c *Config) { c.Workflow.FeedbackDelayMinutes = 61 },
			wantErr: "feedback_delay_minutes",
		},
		{
			name:    "unknown instance type",
			mutate:  func(c *Config) { c.Instances[0].Type = "lidarr" },
			wantErr: "type must be",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Instances[0].APIKey = "" },
			wantErr: "api_key",
		},
		{
			name:    "queue references unknown instance",
			mutate:  func(c *Config) { c.Queues[0].Instance = "ghost" },
			wantErr: "unknown instance",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Queues[0].Strategy = "everything" },
			wantErr: "strategy",
		},
		{
			name: "flat mode without hours",
			mutate: func(c *Config) {
				c.Queues[0].CooldownMode = "flat"
				c.Queues[0].CooldownHours = 0
			},
			wantErr: "cooldown_hours is required",
		},
		{
			name: "flat mode hours above cap",
			mutate: func(c *Config) {
				c.Queues[0].CooldownMode = "flat"
				c.Queues[0].CooldownHours = 400
			},
			wantErr: "between 1 and 336",
		},
		{
			name: "adaptive mode with hours",
			mutate: func(c *Config) {
				c.Queues[0].CooldownMode = "adaptive"
				c.Queues[0].CooldownHours = 24
			},
			wantErr: "only used when cooldown_mode",
		},
		{
			name:    "max items above range",
			mutate:  func(c *Config) { c.Queues[0].MaxItemsPerRun = 501 },
			wantErr: "max_items_per_run",
		},
		{
			name:    "interval above range",
			mutate:  func(c *Config) { c.Queues[0].IntervalHours = 169 },
			wantErr: "interval_hours",
		},
		{
			name: "season packs on radarr",
			mutate: func(c *Config) {
				c.Instances[0].Type = "radarr"
				c.Queues[0].SeasonPackEnabled = true
			},
			wantErr: "season packs require a sonarr instance",
		},
		{
			name:    "season pack threshold below range",
			mutate:  func(c *Config) { c.Queues[0].SeasonPackThreshold = 1 },
			wantErr: "season_pack_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Instances = []Instance{{
				Name:   "main",
				Type:   "sonarr",
				URL:    "http://localhost:8989",
				APIKey: "secret",
			}}
			cfg.Queues = []Queue{{
				Name:                "q",
				Instance:            "main",
				Strategy:            "missing",
				CooldownMode:        "adaptive",
				MaxItemsPerRun:      10,
				IntervalHours:       24,
				SeasonPackThreshold: 3,
			}}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsDuplicateQueueNames(t *testing.T) {
	path := writeConfig(t, validConfig+`
[[queues]]
name = "missing"
instance = "sonarr-main"
strategy = "cutoff"
`)

	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected duplicate queue name error, got nil")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample() error: %v", err)
	}

	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	expanded, err := expandPath("~/fetcharr-test")
	if err != nil {
		t.Fatalf("expandPath() error: %v", err)
	}
	if expanded != filepath.Join(home, "fetcharr-test") {
		t.Fatalf("expandPath() = %q", expanded)
	}
}
