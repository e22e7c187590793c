package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileKeepsDefaults(t *testing.T) {
	defaults := Config{ListingURL: "https://example.com/%s", CardBatchSize: 10}

	cfg, err := LoadConfig(t.TempDir(), "fienta", defaults)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg != defaults {
		t.Errorf("Expected defaults unchanged, got: %+v", cfg)
	}
}

func TestLoadConfig_EmptyDirKeepsDefaults(t *testing.T) {
	defaults := Config{ListingURL: "https://example.com/%s"}

	cfg, err := LoadConfig("", "fienta", defaults)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListingURL != defaults.ListingURL {
		t.Errorf("Expected default listing URL, got: %q", cfg.ListingURL)
	}
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	dir := t.TempDir()
	content := `
max_cities: 5
timeout: 60
`
	if err := os.WriteFile(filepath.Join(dir, "fienta.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	defaults := Config{ListingURL: "https://example.com/%s", CardBatchSize: 10}
	cfg, err := LoadConfig(dir, "fienta", defaults)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ListingURL != "https://example.com/%s" {
		t.Errorf("Expected untouched listing URL, got: %q", cfg.ListingURL)
	}
	if cfg.CardBatchSize != 10 {
		t.Errorf("Expected untouched batch size, got: %d", cfg.CardBatchSize)
	}
	if cfg.MaxCities != 5 {
		t.Errorf("Expected overridden max cities 5, got: %d", cfg.MaxCities)
	}
	if cfg.Timeout() != 60*time.Second {
		t.Errorf("Expected 60s timeout, got: %s", cfg.Timeout())
	}
}

func TestLoadConfig_YamlExtensionFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kontramarka.yaml"), []byte("concurrency: 7\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(dir, "kontramarka", Config{Concurrency: 3})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Concurrency != 7 {
		t.Errorf("Expected concurrency 7 from .yaml file, got: %d", cfg.Concurrency)
	}
}

func TestLoadConfig_InvalidYaml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fienta.yml"), []byte("listing_url: [broken"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfig(dir, "fienta", Config{}); err == nil {
		t.Error("Expected an error for invalid yaml")
	}
}

func TestConfigTimeout_Default(t *testing.T) {
	cfg := Config{}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Expected 30s default timeout, got: %s", cfg.Timeout())
	}
}
