package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"site-archiver/pkg/utils"
)

// Load reads an optional YAML config file and returns a config with
// defaults applied. An empty path yields the pure-default config.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	if path != "" {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("%w: reading config file '%s': %w", utils.ErrConfigValidation, path, readErr)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file '%s': %w", utils.ErrConfigValidation, path, err)
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}
