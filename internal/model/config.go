package model

import "time"

// Config is the full runtime configuration. Field tags serve both the YAML
// dump in `config show` and viper's mapstructure decoding.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Inference    InferenceConfig    `yaml:"inference" mapstructure:"inference"`
	Evidence     EvidenceConfig     `yaml:"evidence" mapstructure:"evidence"`
	Harvest      HarvestConfig      `yaml:"harvest" mapstructure:"harvest"`
	Run          RunConfig          `yaml:"run" mapstructure:"run"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Watch        WatchConfig        `yaml:"watch" mapstructure:"watch"`
}

// HTTPConfig is shared by every outbound HTTP client
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// InferenceConfig selects and tunes the text-completion provider
type InferenceConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // gemini, openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	Topic       string  `yaml:"topic" mapstructure:"topic"` // relevance filter domain
}

// EvidenceConfig points at the literature index
type EvidenceConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// HarvestConfig selects where raw statements come from
type HarvestConfig struct {
	Source      string              `yaml:"source" mapstructure:"source"` // fixture, web, browser
	FixturePath string              `yaml:"fixture_path,omitempty" mapstructure:"fixture_path"`
	Pages       map[string][]string `yaml:"pages,omitempty" mapstructure:"pages"` // subject -> page URLs for the web source
	ProfileURL  string              `yaml:"profile_url" mapstructure:"profile_url"`
	Headless    bool                `yaml:"headless" mapstructure:"headless"`
	ControlURL  string              `yaml:"control_url,omitempty" mapstructure:"control_url"`
	ScrollLimit int                 `yaml:"scroll_limit" mapstructure:"scroll_limit"`
}

// RunConfig holds the defaults for a single analysis run
type RunConfig struct {
	TimeRange TimeRange     `yaml:"time_range" mapstructure:"time_range"`
	MaxItems  int           `yaml:"max_items" mapstructure:"max_items"`
	Sources   []string      `yaml:"sources,omitempty" mapstructure:"sources"`
	Notes     string        `yaml:"notes,omitempty" mapstructure:"notes"`
	FailFast  bool          `yaml:"fail_fast" mapstructure:"fail_fast"`
	Retries   int           `yaml:"retries" mapstructure:"retries"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ConcurrencyConfig bounds fan-out
type ConcurrencyConfig struct {
	Workers  int `yaml:"workers" mapstructure:"workers"`   // items analysed in parallel per subject
	Subjects int `yaml:"subjects" mapstructure:"subjects"` // subjects analysed in parallel by batch
}

// RateLimitingConfig throttles calls to upstream services
type RateLimitingConfig struct {
	InferenceRPS float64 `yaml:"inference_rps" mapstructure:"inference_rps"`
	EvidenceRPS  float64 `yaml:"evidence_rps" mapstructure:"evidence_rps"`
	BurstSize    int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig controls response caching for inference and evidence calls
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// StoreConfig selects the analysis store backend
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // sqlite, memory
	Path   string `yaml:"path" mapstructure:"path"`
}

// WatchConfig drives the scheduled re-analysis daemon
type WatchConfig struct {
	Schedule string   `yaml:"schedule" mapstructure:"schedule"` // cron expression
	Timezone string   `yaml:"timezone" mapstructure:"timezone"`
	Subjects []string `yaml:"subjects,omitempty" mapstructure:"subjects"`
	LockPath string   `yaml:"lock_path" mapstructure:"lock_path"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		},
		Inference: InferenceConfig{
			Provider:    "gemini",
			Model:       "gemini-1.5-flash",
			Timeout:     30,
			MaxTokens:   1000,
			Temperature: 0.3,
			Topic:       "health",
		},
		Evidence: EvidenceConfig{
			BaseURL:      "https://scholar.google.com/scholar",
			MaxBodyBytes: 2_000_000,
		},
		Harvest: HarvestConfig{
			Source:      "fixture",
			FixturePath: "subjects.yaml",
			ProfileURL:  "https://x.com/%s",
			Headless:    true,
			ScrollLimit: 10,
		},
		Run: RunConfig{
			TimeRange: TimeRangeLastWeek,
			MaxItems:  10,
			Retries:   2,
			Timeout:   10 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			Workers:  4,
			Subjects: 2,
		},
		RateLimiting: RateLimitingConfig{
			InferenceRPS: 5,
			EvidenceRPS:  0.5,
			BurstSize:    2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".veracity/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   ".veracity/veracity.db",
		},
		Watch: WatchConfig{
			Schedule: "0 6 * * *",
			Timezone: "UTC",
			LockPath: ".veracity/watch.lock",
		},
	}
}
