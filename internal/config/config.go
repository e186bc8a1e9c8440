package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

func NewConfig() *Config {
	return &Config{}
}

// Read loads the JSON configuration file and fills in defaults for the
// optional sections.
func (c *Config) Read(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Cache.Namespace == "" {
		c.Cache.Namespace = "imagegate:derivatives"
	}
	if c.Prewarm.Stream == "" {
		c.Prewarm.Stream = "imagegate:prewarm"
	}
	if c.Prewarm.Group == "" {
		c.Prewarm.Group = "prewarm-workers"
	}
	if c.Prewarm.Workers <= 0 {
		c.Prewarm.Workers = 2
	}
	if c.Prewarm.MaxAttempts <= 0 {
		c.Prewarm.MaxAttempts = 3
	}
	if len(c.Prewarm.Tiers) == 0 {
		c.Prewarm.Tiers = []string{"1", "2"}
	}
	if c.Prewarm.Consumer == "" {
		// XReadGroup requires a non-empty consumer name.
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "imagegate"
		}
		c.Prewarm.Consumer = host
	}
	if c.Prewarm.BlockTimeout <= 0 {
		c.Prewarm.BlockTimeout = 5 * time.Second
	}
	if c.Prewarm.BackoffBase <= 0 {
		c.Prewarm.BackoffBase = time.Second
	}
}
