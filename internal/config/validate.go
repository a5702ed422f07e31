package config

import (
	"errors"
	"fmt"

	"fetcharr/internal/catalog"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateInstances(); err != nil {
		return err
	}
	return c.validateQueues()
}

func (c *Config) validateWorkflow() error {
	w := c.Workflow
	if w.FeedbackDelayMinutes < 5 || w.FeedbackDelayMinutes > 60 {
		return errors.New("workflow.feedback_delay_minutes must be between 5 and 60")
	}
	if w.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if w.RequestTimeout <= 0 {
		return errors.New("workflow.request_timeout must be positive")
	}
	if w.RateLimitPerSecond < 1 {
		return errors.New("workflow.rate_limit_per_second must be at least 1")
	}
	if w.DispatchPacingSeconds < 0 {
		return errors.New("workflow.dispatch_pacing_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
}

func (c *Config) validateInstances() error {
	seen := make(map[string]struct{}, len(c.Instances))
	for _, inst := range c.Instances {
		if inst.Name == "" {
			return errors.New("instances: name must be set")
		}
		if _, dup := seen[inst.Name]; dup {
			return fmt.Errorf("duplicate instance name %q", inst.Name)
		}
		seen[inst.Name] = struct{}{}

		if inst.Type != "sonarr" && inst.Type != "radarr" {
			return fmt.Errorf("instance %q: type must be \"sonarr\" or \"radarr\", got %q", inst.Name, inst.Type)
		}
		if inst.URL == "" {
			return fmt.Errorf("instance %q: url must be set", inst.Name)
		}
		if inst.APIKey == "" {
			return fmt.Errorf("instance %q: api_key must be set", inst.Name)
		}
	}
	return nil
}

func (c *Config) validateQueues() error {
	for _, q := range c.Queues {
		if q.Name == "" {
			return errors.New("queues: name must be set")
		}
		inst, ok := c.InstanceByName(q.Instance)
		if !ok {
			return fmt.Errorf("queue %q: unknown instance %q", q.Name, q.Instance)
		}
		if _, ok := catalog.ParseStrategy(q.Strategy); !ok {
			return fmt.Errorf("queue %q: strategy must be one of missing, cutoff, recent; got %q", q.Name, q.Strategy)
		}

		switch q.CooldownMode {
		case "flat":
			if q.CooldownHours == 0 {
				return fmt.Errorf("queue %q: cooldown_hours is required when cooldown_mode is \"flat\"", q.Name)
			}
			if q.CooldownHours < 1 || q.CooldownHours > 336 {
				return fmt.Errorf("queue %q: cooldown_hours must be between 1 and 336", q.Name)
			}
		case "adaptive":
			if q.CooldownHours != 0 {
				return fmt.Errorf("queue %q: cooldown_hours is only used when cooldown_mode is \"flat\"", q.Name)
			}
		default:
			return fmt.Errorf("queue %q: cooldown_mode must be \"adaptive\" or \"flat\", got %q", q.Name, q.CooldownMode)
		}

		if q.MaxItemsPerRun < 1 || q.MaxItemsPerRun > 500 {
			return fmt.Errorf("queue %q: max_items_per_run must be between 1 and 500", q.Name)
		}
		if q.IntervalHours < 1 || q.IntervalHours > 168 {
			return fmt.Errorf("queue %q: interval_hours must be between 1 and 168", q.Name)
		}

		if q.SeasonPackEnabled {
			if inst.Type != "sonarr" {
				return fmt.Errorf("queue %q: season packs require a sonarr instance", q.Name)
			}
		}
		if q.SeasonPackThreshold < 2 || q.SeasonPackThreshold > 50 {
			return fmt.Errorf("queue %q: season_pack_threshold must be between 2 and 50", q.Name)
		}
	}
	return nil
}
