package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	validLevels  = []string{"trace", "debug", "info", "warn", "error"}
	validFormats = []string{"console", "json", "pretty"}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.AI.MinConfidence < 0 || c.AI.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("ai.min_confidence must be within [0, 1], got %v", c.AI.MinConfidence))
	}
	if c.AI.FallbackThreshold < 0 || c.AI.FallbackThreshold > 1 {
		errs = append(errs, fmt.Errorf("ai.fallback_threshold must be within [0, 1], got %v", c.AI.FallbackThreshold))
	}
	if c.AI.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ai.rate_limit_per_minute must not be negative, got %d", c.AI.RateLimitPerMinute))
	}
	if p := strings.ToLower(c.AI.Provider); p != "" && p != "claude" {
		errs = append(errs, fmt.Errorf("ai.provider %q is not supported (want \"claude\")", c.AI.Provider))
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if !oneOf(c.Log.Level, validLevels) {
		errs = append(errs, fmt.Errorf("log.level must be one of %s, got %q", strings.Join(validLevels, ", "), c.Log.Level))
	}
	if !oneOf(c.Log.Format, validFormats) {
		errs = append(errs, fmt.Errorf("log.format must be one of %s, got %q", strings.Join(validFormats, ", "), c.Log.Format))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
