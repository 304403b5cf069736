package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort  string
	StaticDir   string
	CORSOrigins []string

	StoreDriver       string // "mysql" or "sqlite3"
	StoreDSN          string
	StoreHost         string
	StoreUser         string
	StorePassword     string
	StoreDatabase     string
	StoreMaxOpenConns int
	StoreAutoMigrate  bool

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	ForecastDays      int

	AIProvider string // "gemini" or "openai"
	AIAPIKey   string
	AIURL      string
	AIModel    string
	AITimeout  time.Duration

	RequestTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
}

type fileConfig struct {
	Server struct {
		Port        string   `yaml:"port"`
		StaticDir   string   `yaml:"static_dir"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Store struct {
		Driver       string `yaml:"driver"`
		DSN          string `yaml:"dsn"`
		Host         string `yaml:"host"`
		User         string `yaml:"user"`
		Database     string `yaml:"database"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		AutoMigrate  bool   `yaml:"auto_migrate"`
	} `yaml:"store"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Days    int    `yaml:"days"`
	} `yaml:"weather_api"`

	AI struct {
		Provider string `yaml:"provider"`
		URL      string `yaml:"url"`
		Model    string `yaml:"model"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"ai"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS                   int    `yaml:"rate_limit_rps"`
		RateLimitBurst                 int    `yaml:"rate_limit_burst"`
		CircuitBreakerEnabled          bool   `yaml:"circuit_breaker_enabled"`
		CircuitBreakerFailureThreshold int    `yaml:"circuit_breaker_failure_threshold"`
		CircuitBreakerSuccessThreshold int    `yaml:"circuit_breaker_success_threshold"`
		CircuitBreakerTimeout          string `yaml:"circuit_breaker_timeout"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	AIAPIKey      string `yaml:"ai_api_key"`
	DBPassword    string `yaml:"db_password"`
	DBDSN         string `yaml:"db_dsn"`
}

const (
	defaultWeatherAPIURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"
	defaultGeminiURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash-latest"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// Secrets come from WEATHER_API_KEY, AI_API_KEY, DB_PASSWORD and DB_DSN env or the
// secrets file; env wins. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = envOr("PORT", fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "3000"
	}
	cfg.StaticDir = strings.TrimSpace(fc.Server.StaticDir)
	cfg.CORSOrigins = fc.Server.CORSOrigins
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(envOr("DB_DRIVER", fc.Store.Driver)))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "mysql"
	}
	cfg.StoreDSN = firstNonEmpty(os.Getenv("DB_DSN"), sec.DBDSN, fc.Store.DSN)
	cfg.StoreHost = envOr("DB_HOST", fc.Store.Host)
	if cfg.StoreHost == "" {
		cfg.StoreHost = "localhost:3306"
	}
	cfg.StoreUser = envOr("DB_USER", fc.Store.User)
	cfg.StorePassword = firstNonEmpty(os.Getenv("DB_PASSWORD"), sec.DBPassword)
	cfg.StoreDatabase = envOr("DB_DATABASE", fc.Store.Database)
	cfg.StoreMaxOpenConns = fc.Store.MaxOpenConns
	if cfg.StoreMaxOpenConns <= 0 {
		cfg.StoreMaxOpenConns = 10
	}
	cfg.StoreAutoMigrate = fc.Store.AutoMigrate

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), os.Getenv("VISUAL_CROSSING_API_KEY"), sec.WeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}
	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = defaultWeatherAPIURL
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 15*time.Second)
	cfg.ForecastDays = fc.WeatherAPI.Days
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 15
	}

	cfg.AIProvider = strings.ToLower(strings.TrimSpace(envOr("AI_PROVIDER", fc.AI.Provider)))
	if cfg.AIProvider == "" {
		cfg.AIProvider = "gemini"
	}
	cfg.AIAPIKey = firstNonEmpty(os.Getenv("AI_API_KEY"), os.Getenv("GEMINI_API_KEY"), sec.AIAPIKey)
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("AI_API_KEY required (set env or config/secrets.yaml ai_api_key)")
	}
	cfg.AIURL = fc.AI.URL
	if cfg.AIURL == "" && cfg.AIProvider == "gemini" {
		cfg.AIURL = defaultGeminiURL
	}
	cfg.AIModel = fc.AI.Model
	if cfg.AIModel == "" {
		if cfg.AIProvider == "openai" {
			cfg.AIModel = defaultOpenAIModel
		} else {
			cfg.AIModel = defaultGeminiModel
		}
	}
	cfg.AITimeout = parseDurationOrZero(fc.AI.Timeout, 15*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 35*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}
	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreakerEnabled
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreakerFailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreakerSuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 1
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreakerTimeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. Upstream timeouts must be positive and the
// request timeout is raised to cover the weather call followed by the AI call.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.AITimeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}
	if floor := cfg.WeatherAPITimeout + cfg.AITimeout; cfg.RequestTimeout <= floor {
		cfg.RequestTimeout = floor + 5*time.Second
	}
	switch cfg.StoreDriver {
	case "mysql":
		if cfg.StoreDSN == "" && (cfg.StoreUser == "" || cfg.StoreDatabase == "") {
			return fmt.Errorf("store.user and store.database required for mysql (or set DB_DSN)")
		}
	case "sqlite3":
		if cfg.StoreDSN == "" {
			return fmt.Errorf("store.dsn required for sqlite3")
		}
	default:
		return fmt.Errorf("store.driver must be mysql or sqlite3, got %q", cfg.StoreDriver)
	}
	switch cfg.AIProvider {
	case "gemini":
	case "openai":
	default:
		return fmt.Errorf("ai.provider must be gemini or openai, got %q", cfg.AIProvider)
	}
	return nil
}
