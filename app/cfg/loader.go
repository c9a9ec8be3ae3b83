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
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/hajde.db" description:"Path to the SQLite database file"`

	// Application configuration
	PolicyFile       string   `long:"policy-file" env:"POLICY_FILE" default:"./refresh_policy.yaml" description:"Path to the refresh policy YAML file"`
	Port             string   `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey     string   `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	ManifestDir      string   `long:"manifest-dir" env:"MANIFEST_DIR" default:"./data/manifests" description:"Directory for batch manifest files (file store)"`
	ManifestStore    string   `long:"manifest-store" env:"MANIFEST_STORE" default:"file" choice:"file" choice:"db" description:"Batch manifest store backend"`
	RedisAddr        string   `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the distributed refresh registry (optional)"`
	DisabledJobTypes []string `long:"disable-job-type" env:"DISABLED_JOB_TYPES" env-delim:"," description:"Job types to administratively disable (prepare_batch, run_batch, postbatch)"`

	// Catalog API configuration
	CatalogBaseURL string `long:"catalog-base-url" env:"CATALOG_BASE_URL" default:"https://catalog.hajde.stream/v3" description:"Base URL of the external catalog API"`
	CatalogAPIKey  string `long:"catalog-api-key" env:"CATALOG_API_KEY" description:"API key for the external catalog"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Hajde Music Stream/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"Europe/Belgrade" description:"Timezone used for day keys and slot times"`
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
		DBPath:           raw.DBPath,
		PolicyFile:       raw.PolicyFile,
		Port:             raw.Port,
		APIAccessKey:     raw.APIAccessKey,
		ManifestDir:      raw.ManifestDir,
		ManifestStore:    raw.ManifestStore,
		RedisAddr:        raw.RedisAddr,
		DisabledJobTypes: raw.DisabledJobTypes,
		CatalogBaseURL:   raw.CatalogBaseURL,
		CatalogAPIKey:    raw.CatalogAPIKey,
		UserAgent:        raw.UserAgent,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	loc, err := loadTimezone(cfg.Timezone)
	if err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using UTC: %v\n", cfg.Timezone, err)
		loc = time.UTC
	}
	cfg.Location = loc

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func loadTimezone(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(timezone)
}
