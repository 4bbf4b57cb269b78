package config

import (
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Keys for timing settings.
const (
	KeyRolloutTimeout    = "rollout-timeout"
	KeyPollInterval      = "poll-interval"
	KeyRetryMaxAttempts  = "retry-max-attempts"
	KeyRetryInitialDelay = "retry-initial-delay"
)

// Timeouts holds the configurable timing of a run.
type Timeouts struct {
	Rollout           time.Duration // Ceiling for a single rollout wait
	Poll              time.Duration // Interval between readiness checks
	RetryMaxAttempts  int           // Retries for conflicting or throttled writes
	RetryInitialDelay time.Duration // First backoff delay for write retries
}

// LoadTimeouts reads timing settings. Unset or unparsable values fall back
// to the defaults.
//
// Environment Variables:
//   - UPGRADE_HELPERS_ROLLOUT_TIMEOUT (default: 120s)
//   - UPGRADE_HELPERS_POLL_INTERVAL (default: 5s)
//   - UPGRADE_HELPERS_RETRY_MAX_ATTEMPTS (default: 3)
//   - UPGRADE_HELPERS_RETRY_INITIAL_DELAY (default: 500ms)
func LoadTimeouts(v *viper.Viper) Timeouts {
	return Timeouts{
		Rollout:           parseDuration(v, KeyRolloutTimeout, 120*time.Second),
		Poll:              parseDuration(v, KeyPollInterval, 5*time.Second),
		RetryMaxAttempts:  parseInt(v, KeyRetryMaxAttempts, 3),
		RetryInitialDelay: parseDuration(v, KeyRetryInitialDelay, 500*time.Millisecond),
	}
}

// parseDuration reads a duration key. If the key is not set, does not parse,
// or is not positive, the default value is returned.
func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	val := v.GetString(key)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt reads an integer key. If the key is not set, does not parse, or
// is negative, the default value is returned.
func parseInt(v *viper.Viper, key string, defaultVal int) int {
	val := v.GetString(key)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}

	return i
}
