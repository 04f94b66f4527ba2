package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables that override the file.
const (
	EnvAIEnabled       = "FERRY_AI_ENABLED"
	EnvAIModel         = "FERRY_AI_MODEL"
	EnvAIMinConfidence = "FERRY_AI_MIN_CONFIDENCE"
	EnvAIRateLimit     = "FERRY_AI_RATE_LIMIT"
	EnvLogLevel        = "FERRY_LOG_LEVEL"
)

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. Unparseable values are errors.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAIEnabled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAIEnabled, v, err)
		}
		c.AI.Enabled = b
	}
	if v, ok := get(EnvAIModel); ok {
		c.AI.Model = v
	}
	if v, ok := get(EnvAIMinConfidence); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAIMinConfidence, v, err)
		}
		c.AI.MinConfidence = f
	}
	if v, ok := get(EnvAIRateLimit); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAIRateLimit, v, err)
		}
		c.AI.RateLimitPerMinute = n
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = v
	}
	return nil
}
