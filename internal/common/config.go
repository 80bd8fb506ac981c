package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig     `toml:"logging"`
	Fetch       FetchConfig       `toml:"fetch"`
	Output      OutputConfig      `toml:"output"`
	MusicBrainz MusicBrainzConfig `toml:"musicbrainz"`
	Quotes      QuotesConfig      `toml:"quotes"`
	Deezer      DeezerConfig      `toml:"deezer"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Alerts      AlertsConfig      `toml:"alerts"`
	LLM         LLMConfig         `toml:"llm"`
	Claude      ClaudeConfig      `toml:"claude"`
	Gemini      GeminiConfig      `toml:"gemini"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05"
}

// FetchConfig controls the rate-limited fetcher shared by all HTTP sources
type FetchConfig struct {
	UserAgent   string `toml:"user_agent" validate:"required"`
	Timeout     string `toml:"timeout"`      // per-request timeout, e.g. "20s"
	Retries     int    `toml:"retries" validate:"min=1"`
	PoliteDelay string `toml:"polite_delay"` // minimum gap between consecutive requests, e.g. "1.05s"
	BackoffUnit string `toml:"backoff_unit"` // unit for the 1,2,4... backoff schedule, e.g. "1s"
}

type OutputConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

type MusicBrainzConfig struct {
	BaseURL      string `toml:"base_url" validate:"required,url"`
	Query        string `toml:"query"`
	Pages        int    `toml:"pages" validate:"min=1"`
	Limit        int    `toml:"limit" validate:"min=1,max=100"`
	SearchTable  string `toml:"search_table"`
	DetailsTable string `toml:"details_table"`
	ArtifactsDir string `toml:"artifacts_dir"`
}

type QuotesConfig struct {
	BaseURL       string `toml:"base_url" validate:"required,url"`
	RenderedURL   string `toml:"rendered_url"`
	Pages         int    `toml:"pages" validate:"min=1"`
	Delay         string `toml:"delay"`
	RenderTimeout string `toml:"render_timeout"`
	Headless      bool   `toml:"headless"`
}

type DeezerConfig struct {
	TargetPage string `toml:"target_page"`
	Cookie     string `toml:"cookie"`
	SID        string `toml:"sid"`
	OutputFile string `toml:"output_file"`
	DebugDir   string `toml:"debug_dir"`
}

// SchedulerConfig controls metrics persistence, alerting and declared jobs
type SchedulerConfig struct {
	MetricsFile    string      `toml:"metrics_file"`
	AlertLog       string      `toml:"alert_log"`
	HistoryCap     int         `toml:"history_cap" validate:"min=1"`
	AlertMinJobs   int         `toml:"alert_min_jobs" validate:"min=0"`      // alerts only once total_jobs exceeds this
	AlertThreshold float64     `toml:"alert_threshold" validate:"gt=0,lte=1"` // failure ratio that must be exceeded
	Jobs           []JobConfig `toml:"jobs" validate:"dive"`
}

// JobConfig declares a scheduled pipeline. Exactly one of Cron or IntervalMinutes is set.
type JobConfig struct {
	ID              string `toml:"id" validate:"required"`
	Pipeline        string `toml:"pipeline" validate:"required,oneof=musicbrainz quotes deezer"`
	Cron            string `toml:"cron"`
	IntervalMinutes int    `toml:"interval_minutes" validate:"min=0"`
}

type AlertsConfig struct {
	Email EmailConfig `toml:"email"`
}

type EmailConfig struct {
	Enabled  bool     `toml:"enabled"`
	Server   string   `toml:"server" validate:"required_if=Enabled true"`
	Port     int      `toml:"port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from" validate:"required_if=Enabled true"`
	To       []string `toml:"to" validate:"required_if=Enabled true"`
}

// LLMConfig contains provider-independent settings for the insights analyzer
type LLMConfig struct {
	DefaultProvider string  `toml:"default_provider" validate:"oneof=claude gemini"`
	MaxSamples      int     `toml:"max_samples" validate:"min=1"`
	Temperature     float32 `toml:"temperature"`
}

type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Fetch: FetchConfig{
			UserAgent:   "harvester/0.1 (+https://github.com/ternarybob/harvester)",
			Timeout:     "20s",
			Retries:     3,
			PoliteDelay: "1.05s", // MusicBrainz asks for at most 1 req/s
			BackoffUnit: "1s",
		},
		Output: OutputConfig{
			Dir: "./outputs",
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:      "https://musicbrainz.org/ws/2",
			Query:        `recording:"love" AND artist:"Radiohead"`,
			Pages:        4,
			Limit:        25,
			SearchTable:  "musicbrainz_search.csv",
			DetailsTable: "musicbrainz_details.csv",
			ArtifactsDir: "details_json",
		},
		Quotes: QuotesConfig{
			BaseURL:       "https://quotes.toscrape.com",
			RenderedURL:   "https://quotes.toscrape.com/js-delayed/",
			Pages:         5,
			Delay:         "800ms",
			RenderTimeout: "15s",
			Headless:      true,
		},
		Deezer: DeezerConfig{
			TargetPage: "https://www.deezer.com/en/charts/track",
			OutputFile: "deezer_page.json",
			DebugDir:   "deezer_debug",
		},
		Scheduler: SchedulerConfig{
			MetricsFile:    "scheduler_metrics.json",
			AlertLog:       "alerts.log",
			HistoryCap:     100,
			AlertMinJobs:   10,
			AlertThreshold: 0.30,
		},
		Alerts: AlertsConfig{
			Email: EmailConfig{Port: 587},
		},
		LLM: LLMConfig{
			DefaultProvider: "claude",
			MaxSamples:      20,
			Temperature:     0.7,
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 800,
			Timeout:   "2m",
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "2m",
		},
	}
}

// LoadDotEnv loads .env style files into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HARVESTER_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("HARVESTER_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if output := os.Getenv("HARVESTER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	if dir := os.Getenv("HARVESTER_OUTPUT_DIR"); dir != "" {
		config.Output.Dir = dir
	}

	if ua := os.Getenv("HARVESTER_USER_AGENT"); ua != "" {
		config.Fetch.UserAgent = ua
	}
	if retries := os.Getenv("HARVESTER_FETCH_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Fetch.Retries = r
		}
	}
	if delay := os.Getenv("HARVESTER_FETCH_DELAY"); delay != "" {
		config.Fetch.PoliteDelay = delay
	}

	if cookie := os.Getenv("DEEZER_COOKIE"); cookie != "" {
		config.Deezer.Cookie = strings.TrimSpace(cookie)
	}
	if sid := os.Getenv("DEEZER_SID"); sid != "" {
		config.Deezer.SID = strings.TrimSpace(sid)
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}

	if password := os.Getenv("HARVESTER_SMTP_PASSWORD"); password != "" {
		config.Alerts.Email.Password = password
	}
}

// Validate checks struct constraints, duration strings and declared job triggers
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"fetch.timeout":         c.Fetch.Timeout,
		"fetch.polite_delay":    c.Fetch.PoliteDelay,
		"fetch.backoff_unit":    c.Fetch.BackoffUnit,
		"quotes.delay":          c.Quotes.Delay,
		"quotes.render_timeout": c.Quotes.RenderTimeout,
		"claude.timeout":        c.Claude.Timeout,
		"gemini.timeout":        c.Gemini.Timeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	for _, job := range c.Scheduler.Jobs {
		if (job.Cron == "") == (job.IntervalMinutes == 0) {
			return fmt.Errorf("job %s: exactly one of cron or interval_minutes must be set", job.ID)
		}
		if job.Cron != "" {
			if err := ValidateJobSchedule(job.Cron); err != nil {
				return fmt.Errorf("job %s: %w", job.ID, err)
			}
		}
	}

	return nil
}

// ApplyFlagOverrides applies command-line overrides (highest priority)
func ApplyFlagOverrides(config *Config, outputDir string, logLevel string) {
	if outputDir != "" {
		config.Output.Dir = outputDir
	}
	if logLevel != "" {
		config.Logging.Level = strings.ToLower(logLevel)
	}
}

// OutputPath resolves name inside the output directory unless it is already absolute
func (c *Config) OutputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Output.Dir, name)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDurationOr parses value, returning fallback when value is empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
