package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "WEB_RESEARCHER_CONFIG"
	logLevelEnv        = "LOG_LEVEL"
	searchProviderEnv  = "SEARCH_PROVIDER"
	tavilyAPIKeyEnv    = "TAVILY_API_KEY"
	exaAPIKeyEnv       = "EXA_API_KEY"
	braveAPIKeyEnv     = "BRAVE_API_KEY"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	openAIBaseURLEnv   = "OPENAI_BASE_URL"
	openAIModelEnv     = "OPENAI_MODEL"
	databasePathEnv    = "DATABASE_PATH"
	browserBinEnv      = "BROWSER_BIN"
	screenshotsFlagEnv = "CAPTURE_SCREENSHOTS"
)

const (
	// MaxSearchLimit is the hard cap on candidates requested from a provider.
	MaxSearchLimit = 20
	// MaxFollowUpCount is the hard cap on generated follow-up questions.
	MaxFollowUpCount = 4
	// MaxConcurrency caps in-flight source fetches.
	MaxConcurrency = 8
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Search     SearchConfig     `yaml:"search"`
	Processing ProcessingConfig `yaml:"processing"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Browser    BrowserConfig    `yaml:"browser"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Stream     StreamConfig     `yaml:"stream"`
	Database   DatabaseConfig   `yaml:"database"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SearchConfig selects providers and their credentials.
type SearchConfig struct {
	Provider   string           `yaml:"provider"`
	Fallbacks  []string         `yaml:"fallbacks"`
	Limit      int              `yaml:"limit"`
	Timeout    time.Duration    `yaml:"timeout"`
	RetryDelay time.Duration    `yaml:"retryDelay"`
	Tavily     TavilyConfig     `yaml:"tavily"`
	Exa        ExaConfig        `yaml:"exa"`
	Brave      BraveConfig      `yaml:"brave"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo"`
}

// TavilyConfig wires the Tavily search API.
type TavilyConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
	Depth   string `yaml:"depth"`
}

// ExaConfig wires the Exa search API.
type ExaConfig struct {
	APIKey       string `yaml:"apiKey"`
	BaseURL      string `yaml:"baseUrl"`
	Type         string `yaml:"type"`
	TextMaxChars int    `yaml:"textMaxChars"`
}

// BraveConfig wires the Brave search API.
type BraveConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
}

// DuckDuckGoConfig wires the keyless DuckDuckGo lite endpoint.
type DuckDuckGoConfig struct {
	Enabled *bool  `yaml:"enabled"`
	BaseURL string `yaml:"baseUrl"`
}

// ProcessingConfig bounds the source processor.
type ProcessingConfig struct {
	Concurrency int   `yaml:"concurrency"`
	PerHostCap  int   `yaml:"perHostCap"`
	Screenshots bool  `yaml:"screenshots"`
	Summaries   *bool `yaml:"summaries"`
}

// SummariesEnabled reports whether sources get model summaries. Unset means on.
func (p ProcessingConfig) SummariesEnabled() bool {
	return p.Summaries == nil || *p.Summaries
}

// FetchConfig controls direct page downloads.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxChars     int           `yaml:"maxChars"`
	UserAgent    string        `yaml:"userAgent"`
	AllowPrivate bool          `yaml:"allowPrivate"`
}

// BrowserConfig controls the headless browser used for screenshots.
type BrowserConfig struct {
	Bin            string        `yaml:"bin"`
	ControlURL     string        `yaml:"controlUrl"`
	ViewportWidth  int           `yaml:"viewportWidth"`
	ViewportHeight int           `yaml:"viewportHeight"`
	Timeout        time.Duration `yaml:"timeout"`
}

// SynthesisConfig defines how to contact the chat completion API.
type SynthesisConfig struct {
	BaseURL         string        `yaml:"baseUrl"`
	Model           string        `yaml:"model"`
	SummaryModel    string        `yaml:"summaryModel"`
	APIKey          string        `yaml:"apiKey"`
	SystemPrompt    string        `yaml:"systemPrompt"`
	FollowUpCount   int           `yaml:"followUpCount"`
	MaxSourceChars  int           `yaml:"maxSourceChars"`
	Timeout         time.Duration `yaml:"timeout"`
	FollowUpTimeout time.Duration `yaml:"followUpTimeout"`
}

// StreamConfig bounds the event stream and the conversational context.
type StreamConfig struct {
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	MaxContextTurns int           `yaml:"maxContextTurns"`
	MaxTurnChars    int           `yaml:"maxTurnChars"`
}

// DatabaseConfig points at the SQLite conversation store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load reads YAML configuration from $WEB_RESEARCHER_CONFIG (if set) and
// applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom reads YAML configuration from path (if non-empty) and applies
// environment overrides.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(searchProviderEnv); v != "" {
		c.Search.Provider = v
	}
	if v := os.Getenv(tavilyAPIKeyEnv); v != "" {
		c.Search.Tavily.APIKey = v
	}
	if v := os.Getenv(exaAPIKeyEnv); v != "" {
		c.Search.Exa.APIKey = v
	}
	if v := os.Getenv(braveAPIKeyEnv); v != "" {
		c.Search.Brave.APIKey = v
	}
	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Synthesis.APIKey = v
	}
	if v := os.Getenv(openAIBaseURLEnv); v != "" {
		c.Synthesis.BaseURL = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.Synthesis.Model = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(browserBinEnv); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv(screenshotsFlagEnv); v != "" {
		c.Processing.Screenshots = isTruthy(v)
	}
}

// normalize clamps limits that the engine enforces regardless of input.
func (c *Config) normalize() {
	defaults := defaultConfig()

	c.Search.Limit = clamp(c.Search.Limit, 1, MaxSearchLimit, defaults.Search.Limit)
	c.Processing.Concurrency = clamp(c.Processing.Concurrency, 1, MaxConcurrency, defaults.Processing.Concurrency)
	c.Processing.PerHostCap = clamp(c.Processing.PerHostCap, 1, MaxSearchLimit, defaults.Processing.PerHostCap)
	c.Synthesis.FollowUpCount = clamp(c.Synthesis.FollowUpCount, 0, MaxFollowUpCount, defaults.Synthesis.FollowUpCount)

	if c.Stream.IdleTimeout <= 0 {
		c.Stream.IdleTimeout = defaults.Stream.IdleTimeout
	}
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = defaults.Search.Timeout
	}
	if c.Search.RetryDelay <= 0 {
		c.Search.RetryDelay = defaults.Search.RetryDelay
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = defaults.Fetch.Timeout
	}
	if c.Synthesis.Timeout <= 0 {
		c.Synthesis.Timeout = defaults.Synthesis.Timeout
	}
	if c.Synthesis.FollowUpTimeout <= 0 {
		c.Synthesis.FollowUpTimeout = defaults.Synthesis.FollowUpTimeout
	}
	if c.Synthesis.SummaryModel == "" {
		c.Synthesis.SummaryModel = c.Synthesis.Model
	}
	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Search.Provider != "" {
		base.Search.Provider = override.Search.Provider
	}
	if len(override.Search.Fallbacks) > 0 {
		base.Search.Fallbacks = override.Search.Fallbacks
	}
	if override.Search.Limit != 0 {
		base.Search.Limit = override.Search.Limit
	}
	if override.Search.Timeout != 0 {
		base.Search.Timeout = override.Search.Timeout
	}
	if override.Search.RetryDelay != 0 {
		base.Search.RetryDelay = override.Search.RetryDelay
	}
	if override.Search.Tavily.APIKey != "" {
		base.Search.Tavily.APIKey = override.Search.Tavily.APIKey
	}
	if override.Search.Tavily.BaseURL != "" {
		base.Search.Tavily.BaseURL = override.Search.Tavily.BaseURL
	}
	if override.Search.Tavily.Depth != "" {
		base.Search.Tavily.Depth = override.Search.Tavily.Depth
	}
	if override.Search.Exa.APIKey != "" {
		base.Search.Exa.APIKey = override.Search.Exa.APIKey
	}
	if override.Search.Exa.BaseURL != "" {
		base.Search.Exa.BaseURL = override.Search.Exa.BaseURL
	}
	if override.Search.Exa.Type != "" {
		base.Search.Exa.Type = override.Search.Exa.Type
	}
	if override.Search.Exa.TextMaxChars != 0 {
		base.Search.Exa.TextMaxChars = override.Search.Exa.TextMaxChars
	}
	if override.Search.Brave.APIKey != "" {
		base.Search.Brave.APIKey = override.Search.Brave.APIKey
	}
	if override.Search.Brave.BaseURL != "" {
		base.Search.Brave.BaseURL = override.Search.Brave.BaseURL
	}
	if override.Search.DuckDuckGo.Enabled != nil {
		base.Search.DuckDuckGo.Enabled = override.Search.DuckDuckGo.Enabled
	}
	if override.Search.DuckDuckGo.BaseURL != "" {
		base.Search.DuckDuckGo.BaseURL = override.Search.DuckDuckGo.BaseURL
	}

	if override.Processing.Concurrency != 0 {
		base.Processing.Concurrency = override.Processing.Concurrency
	}
	if override.Processing.PerHostCap != 0 {
		base.Processing.PerHostCap = override.Processing.PerHostCap
	}
	if override.Processing.Screenshots {
		base.Processing.Screenshots = true
	}
	if override.Processing.Summaries != nil {
		base.Processing.Summaries = override.Processing.Summaries
	}

	if override.Fetch.Timeout != 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.MaxChars != 0 {
		base.Fetch.MaxChars = override.Fetch.MaxChars
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.AllowPrivate {
		base.Fetch.AllowPrivate = true
	}

	if override.Browser.Bin != "" {
		base.Browser.Bin = override.Browser.Bin
	}
	if override.Browser.ControlURL != "" {
		base.Browser.ControlURL = override.Browser.ControlURL
	}
	if override.Browser.ViewportWidth != 0 {
		base.Browser.ViewportWidth = override.Browser.ViewportWidth
	}
	if override.Browser.ViewportHeight != 0 {
		base.Browser.ViewportHeight = override.Browser.ViewportHeight
	}
	if override.Browser.Timeout != 0 {
		base.Browser.Timeout = override.Browser.Timeout
	}

	if override.Synthesis.BaseURL != "" {
		base.Synthesis.BaseURL = override.Synthesis.BaseURL
	}
	if override.Synthesis.Model != "" {
		base.Synthesis.Model = override.Synthesis.Model
	}
	if override.Synthesis.SummaryModel != "" {
		base.Synthesis.SummaryModel = override.Synthesis.SummaryModel
	}
	if override.Synthesis.APIKey != "" {
		base.Synthesis.APIKey = override.Synthesis.APIKey
	}
	if override.Synthesis.SystemPrompt != "" {
		base.Synthesis.SystemPrompt = override.Synthesis.SystemPrompt
	}
	if override.Synthesis.FollowUpCount != 0 {
		base.Synthesis.FollowUpCount = override.Synthesis.FollowUpCount
	}
	if override.Synthesis.MaxSourceChars != 0 {
		base.Synthesis.MaxSourceChars = override.Synthesis.MaxSourceChars
	}
	if override.Synthesis.Timeout != 0 {
		base.Synthesis.Timeout = override.Synthesis.Timeout
	}
	if override.Synthesis.FollowUpTimeout != 0 {
		base.Synthesis.FollowUpTimeout = override.Synthesis.FollowUpTimeout
	}

	if override.Stream.IdleTimeout != 0 {
		base.Stream.IdleTimeout = override.Stream.IdleTimeout
	}
	if override.Stream.MaxContextTurns != 0 {
		base.Stream.MaxContextTurns = override.Stream.MaxContextTurns
	}
	if override.Stream.MaxTurnChars != 0 {
		base.Stream.MaxTurnChars = override.Stream.MaxTurnChars
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Search: SearchConfig{
			Provider:   "tavily",
			Fallbacks:  []string{"exa", "brave", "duckduckgo"},
			Limit:      10,
			Timeout:    20 * time.Second,
			RetryDelay: 500 * time.Millisecond,
			Tavily:     TavilyConfig{BaseURL: "https://api.tavily.com", Depth: "basic"},
			Exa:        ExaConfig{BaseURL: "https://api.exa.ai", Type: "auto", TextMaxChars: 8000},
			Brave:      BraveConfig{BaseURL: "https://api.search.brave.com/res/v1/web/search"},
			DuckDuckGo: DuckDuckGoConfig{BaseURL: "https://lite.duckduckgo.com/lite/"},
		},
		Processing: ProcessingConfig{
			Concurrency: 4,
			PerHostCap:  2,
		},
		Fetch: FetchConfig{
			Timeout:   15 * time.Second,
			MaxChars:  40000,
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Browser: BrowserConfig{
			ViewportWidth:  1280,
			ViewportHeight: 800,
			Timeout:        20 * time.Second,
		},
		Synthesis: SynthesisConfig{
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			FollowUpCount:   3,
			MaxSourceChars:  6000,
			Timeout:         2 * time.Minute,
			FollowUpTimeout: 20 * time.Second,
		},
		Stream: StreamConfig{
			IdleTimeout:     5 * time.Second,
			MaxContextTurns: 6,
			MaxTurnChars:    2000,
		},
		Database: DatabaseConfig{Path: ""},
	}
}

func clamp(value, lo, hi, fallback int) int {
	if value == 0 {
		value = fallback
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
