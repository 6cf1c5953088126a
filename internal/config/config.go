package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobnorm pipeline.
type Config struct {
	Pipeline     PipelineConfig
	Warehouse    WarehouseConfig
	API          APIConfig
	Fetch        FetchConfig
	Stage        StageConfig
	Rules        RulesConfig
	Notification NotificationConfig
}

// PipelineConfig names the transform and scopes it to one locale.
type PipelineConfig struct {
	Name      string // ledger identity, e.g. "jobs_de"
	Locale    string // only postings with this locale are normalized
	DeltaDays int    // how many days before the execution date to query
}

// WarehouseConfig locates the sqlite warehouse file.
type WarehouseConfig struct {
	Path string `yaml:"path"`
}

// APIConfig describes the postings search API.
type APIConfig struct {
	SearchURL   string
	CountURL    string
	Key         string // expanded from env var by Load
	Host        string
	CountryCode string
	Title       string
	Locale      string
	StartPage   int
	EndPage     int // 0 means "discover via the count endpoint"
}

// FetchConfig controls retries and pacing of page requests.
type FetchConfig struct {
	MaxRetries int
	BaseDelay  time.Duration // first retry delay, doubled per attempt
	MinDelay   time.Duration // minimum gap between page requests
	Timeout    time.Duration // per-request HTTP timeout
}

// StageConfig selects where raw payloads are archived.
type StageConfig struct {
	Type   string `yaml:"type"`   // "s3" or "dir"
	Bucket string `yaml:"bucket"` // required if type is "s3"
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
	Dir    string `yaml:"dir"` // required if type is "dir"
}

// RulesConfig selects the rule feed: a local workbook or published CSV
// exports, one per classification domain.
type RulesConfig struct {
	Source     string            `yaml:"source"`        // "workbook" or "sheet"
	Workbook   string            `yaml:"workbook"`      // required if source is "workbook"
	ExportURLs map[string]string `yaml:"export_urls"`   // required if source is "sheet"
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Pipeline     rawPipelineConfig  `yaml:"pipeline"`
	Warehouse    WarehouseConfig    `yaml:"warehouse"`
	API          rawAPIConfig       `yaml:"api"`
	Fetch        rawFetchConfig     `yaml:"fetch"`
	Stage        StageConfig        `yaml:"stage"`
	Rules        RulesConfig        `yaml:"rules"`
	Notification NotificationConfig `yaml:"notification"`
}

type rawPipelineConfig struct {
	Name      string `yaml:"name"`
	Locale    string `yaml:"locale"`
	DeltaDays *int   `yaml:"delta_days"`
}

type rawAPIConfig struct {
	SearchURL   string `yaml:"search_url"`
	CountURL    string `yaml:"count_url"`
	Key         string `yaml:"key"`
	Host        string `yaml:"host"`
	CountryCode string `yaml:"country_code"`
	Title       string `yaml:"title"`
	Locale      string `yaml:"locale"`
	StartPage   int    `yaml:"start_page"`
	EndPage     int    `yaml:"end_page"`
}

type rawFetchConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
	MinDelay   string `yaml:"min_delay"`
	Timeout    string `yaml:"timeout"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	deltaDays := 1 // default: yesterday's postings
	if raw.Pipeline.DeltaDays != nil {
		deltaDays = *raw.Pipeline.DeltaDays
	}

	maxRetries := 2
	if raw.Fetch.MaxRetries != nil {
		maxRetries = *raw.Fetch.MaxRetries
	}

	baseDelay := 5 * time.Second
	if raw.Fetch.BaseDelay != "" {
		baseDelay, err = time.ParseDuration(raw.Fetch.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("parse fetch.base_delay %q: %w", raw.Fetch.BaseDelay, err)
		}
	}

	minDelay := 1 * time.Second
	if raw.Fetch.MinDelay != "" {
		minDelay, err = time.ParseDuration(raw.Fetch.MinDelay)
		if err != nil {
			return nil, fmt.Errorf("parse fetch.min_delay %q: %w", raw.Fetch.MinDelay, err)
		}
	}

	timeout := 30 * time.Second
	if raw.Fetch.Timeout != "" {
		timeout, err = time.ParseDuration(raw.Fetch.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse fetch.timeout %q: %w", raw.Fetch.Timeout, err)
		}
	}

	startPage := raw.API.StartPage
	if startPage == 0 {
		startPage = 1
	}

	cfg := &Config{
		Pipeline: PipelineConfig{
			Name:      raw.Pipeline.Name,
			Locale:    raw.Pipeline.Locale,
			DeltaDays: deltaDays,
		},
		Warehouse: raw.Warehouse,
		API: APIConfig{
			SearchURL:   raw.API.SearchURL,
			CountURL:    raw.API.CountURL,
			Key:         raw.API.Key,
			Host:        raw.API.Host,
			CountryCode: raw.API.CountryCode,
			Title:       raw.API.Title,
			Locale:      raw.API.Locale,
			StartPage:   startPage,
			EndPage:     raw.API.EndPage,
		},
		Fetch: FetchConfig{
			MaxRetries: maxRetries,
			BaseDelay:  baseDelay,
			MinDelay:   minDelay,
			Timeout:    timeout,
		},
		Stage:        raw.Stage,
		Rules:        raw.Rules,
		Notification: raw.Notification,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Pipeline.Name == "" {
		return fmt.Errorf("pipeline.name is required")
	}
	if cfg.Pipeline.Locale == "" {
		return fmt.Errorf("pipeline.locale is required")
	}
	if cfg.Pipeline.DeltaDays < 0 {
		return fmt.Errorf("pipeline.delta_days must not be negative, got %d", cfg.Pipeline.DeltaDays)
	}

	if cfg.Warehouse.Path == "" {
		return fmt.Errorf("warehouse.path is required")
	}

	if cfg.API.SearchURL == "" || cfg.API.CountURL == "" {
		return fmt.Errorf("api.search_url and api.count_url are required")
	}
	if cfg.API.Key == "" {
		return fmt.Errorf("api.key is required")
	}
	if cfg.API.EndPage < 0 || cfg.API.StartPage < 1 {
		return fmt.Errorf("api page range %d..%d is invalid", cfg.API.StartPage, cfg.API.EndPage)
	}

	switch cfg.Stage.Type {
	case "s3":
		if cfg.Stage.Bucket == "" {
			return fmt.Errorf("stage.bucket is required when type is \"s3\"")
		}
	case "dir":
		if cfg.Stage.Dir == "" {
			return fmt.Errorf("stage.dir is required when type is \"dir\"")
		}
	default:
		return fmt.Errorf("stage.type must be \"s3\" or \"dir\", got %q", cfg.Stage.Type)
	}

	switch cfg.Rules.Source {
	case "workbook":
		if cfg.Rules.Workbook == "" {
			return fmt.Errorf("rules.workbook is required when source is \"workbook\"")
		}
	case "sheet":
		if len(cfg.Rules.ExportURLs) == 0 {
			return fmt.Errorf("rules.export_urls is required when source is \"sheet\"")
		}
	default:
		return fmt.Errorf("rules.source must be \"workbook\" or \"sheet\", got %q", cfg.Rules.Source)
	}

	if cfg.Notification.Type == "slack" {
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	}

	return nil
}
