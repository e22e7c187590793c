package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"parser_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"parser_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"event_comb" description:"Database name"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for parsing operations"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Eventim feed configuration
	EventimURL      string `long:"eventim-url" env:"EVENTIM_URL" description:"Eventim export feed URL"`
	EventimUsername string `long:"eventim-username" env:"EVENTIM_USERNAME" description:"HTTP Basic username for the Eventim feed"`
	EventimPassword string `long:"eventim-password" env:"EVENTIM_PASSWORD" description:"HTTP Basic password for the Eventim feed"`
	CacheDir        string `long:"cache-dir" env:"CACHE_DIR" default:"./cache" description:"Directory for cached feed downloads"`

	// Source configuration overrides
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing per-source configuration overrides"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Event Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Berlin)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:          raw.DBHost,
		DBPort:          raw.DBPort,
		DBUser:          raw.DBUser,
		DBPassword:      raw.DBPassword,
		DBName:          raw.DBName,
		Port:            raw.Port,
		WorkerCount:     raw.WorkerCount,
		APIAccessKey:    raw.APIAccessKey,
		EventimURL:      raw.EventimURL,
		EventimUsername: raw.EventimUsername,
		EventimPassword: raw.EventimPassword,
		CacheDir:        raw.CacheDir,
		SourcesDir:      raw.SourcesDir,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
