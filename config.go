package termsync

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-loadable tuning surface for a session. Zero values mean
// "use the default"; only fields the file sets are applied.
type Config struct {
	MaxHistory     int `yaml:"max_history"`
	ViewportHeight int `yaml:"viewport_height"`

	Predictions struct {
		Enabled    *bool `yaml:"enabled"`
		AckGraceMS int   `yaml:"ack_grace_ms"`
	} `yaml:"predictions"`

	Backfill struct {
		ThrottleMS        int    `yaml:"throttle_ms"`
		Lookahead         uint64 `yaml:"lookahead"`
		MaxRowsPerRequest uint32 `yaml:"max_rows_per_request"`
	} `yaml:"backfill"`

	TranscriptPath string `yaml:"transcript_path"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("termsync: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("termsync: parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// SessionOptions translates the config into session options.
func (c *Config) SessionOptions() []SessionOption {
	var gridOpts []GridOption
	if c.MaxHistory > 0 {
		gridOpts = append(gridOpts, WithMaxHistory(c.MaxHistory))
	}
	if c.ViewportHeight > 0 {
		gridOpts = append(gridOpts, WithViewportHeight(c.ViewportHeight))
	}
	if c.Predictions.Enabled != nil {
		gridOpts = append(gridOpts, WithPredictions(*c.Predictions.Enabled))
	}

	var backfillOpts []BackfillOption
	if c.Backfill.ThrottleMS > 0 {
		backfillOpts = append(backfillOpts, WithBackfillThrottle(time.Duration(c.Backfill.ThrottleMS)*time.Millisecond))
	}
	if c.Backfill.Lookahead > 0 {
		backfillOpts = append(backfillOpts, WithBackfillLookahead(c.Backfill.Lookahead))
	}
	if c.Backfill.MaxRowsPerRequest > 0 {
		backfillOpts = append(backfillOpts, WithMaxRowsPerRequest(c.Backfill.MaxRowsPerRequest))
	}

	var opts []SessionOption
	if len(gridOpts) > 0 {
		opts = append(opts, WithGridOptions(gridOpts...))
	}
	if len(backfillOpts) > 0 {
		opts = append(opts, WithBackfillOptions(backfillOpts...))
	}
	if c.Predictions.AckGraceMS > 0 {
		opts = append(opts, WithAckGrace(time.Duration(c.Predictions.AckGraceMS)*time.Millisecond))
	}
	return opts
}
