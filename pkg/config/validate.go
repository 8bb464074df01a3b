package config

import (
	"fmt"
	"net/url"
	"time"

	"site-archiver/pkg/utils"
)

// Validate checks the configuration for fatal problems and returns advisory
// warnings for values that are legal but suspicious. Call after ApplyDefaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	seed, parseErr := url.ParseRequestURI(c.SeedURL)
	if parseErr != nil {
		return warnings, fmt.Errorf("%w: seed_url '%s' is not a valid absolute URL: %w", utils.ErrConfigValidation, c.SeedURL, parseErr)
	}
	if seed.Scheme != "http" && seed.Scheme != "https" {
		return warnings, fmt.Errorf("%w: seed_url scheme '%s' is not http(s)", utils.ErrConfigValidation, seed.Scheme)
	}
	if seed.Hostname() == "" {
		return warnings, fmt.Errorf("%w: seed_url '%s' has no host", utils.ErrConfigValidation, c.SeedURL)
	}

	if c.OutputDir == "" {
		return warnings, fmt.Errorf("%w: output_dir must not be empty", utils.ErrConfigValidation)
	}

	// Patterns must compile; reuse the shared helper so the error is uniform
	if _, compErr := utils.CompileRegexPatterns(c.ExcludedPathPatterns); compErr != nil {
		return warnings, compErr
	}

	if c.RetryAttempts > 10 {
		warnings = append(warnings, fmt.Sprintf("retry_attempts is %d; more than 10 attempts per image is rarely useful", c.RetryAttempts))
	}
	if c.RetryDelay > time.Minute {
		warnings = append(warnings, fmt.Sprintf("retry_delay is %v; delays over a minute will make failed crawls very slow", c.RetryDelay))
	}
	if c.DownloadWorkers > 16 {
		warnings = append(warnings, fmt.Sprintf("download_workers is %d; high concurrency against a single host may overwhelm it", c.DownloadWorkers))
	}

	return warnings, nil
}
