package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes one source adapter. Every field has a built-in default, so a
// missing file or a partial file is fine; files in the sources directory
// only override what they mention.
type Config struct {
	ListingURL     string `yaml:"listing_url"`
	MaxCities      int    `yaml:"max_cities"`
	Concurrency    int    `yaml:"concurrency"`
	CardBatchSize  int    `yaml:"card_batch_size"`
	TimeoutSeconds int    `yaml:"timeout"`
}

func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadConfig reads <sourcesDir>/<name>.yml (or .yaml) on top of the given
// defaults. A missing file returns the defaults unchanged.
func LoadConfig(sourcesDir, name string, defaults Config) (Config, error) {
	cfg := defaults
	if sourcesDir == "" {
		return cfg, nil
	}

	path := filepath.Join(sourcesDir, name+".yml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Join(sourcesDir, name+".yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read source config %s: %w", path, err)
	}

	var overrides Config
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return cfg, fmt.Errorf("failed to parse source config %s: %w", path, err)
	}

	if overrides.ListingURL != "" {
		cfg.ListingURL = overrides.ListingURL
	}
	if overrides.MaxCities > 0 {
		cfg.MaxCities = overrides.MaxCities
	}
	if overrides.Concurrency > 0 {
		cfg.Concurrency = overrides.Concurrency
	}
	if overrides.CardBatchSize > 0 {
		cfg.CardBatchSize = overrides.CardBatchSize
	}
	if overrides.TimeoutSeconds > 0 {
		cfg.TimeoutSeconds = overrides.TimeoutSeconds
	}

	return cfg, nil
}
