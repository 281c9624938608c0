package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env            string         `yaml:"env"`
	Addr           string         `yaml:"addr"`
	APITimeout     time.Duration  `yaml:"timeout"`
	DatabasePath   string         `yaml:"database_path"`
	MigrateOnStart bool           `yaml:"migrate_on_start"`
	PublicBaseURL  string         `yaml:"public_base_url"`
	LogLevel       string         `yaml:"log_level"`
	MaxUploadBytes int64          `yaml:"max_upload_bytes"`
	EngineConfig   EngineConfig   `yaml:"engine"`
	Ollama         OllamaConfig   `yaml:"ollama"`
	OpenAI         OpenAIConfig   `yaml:"openai"`
	Geocoder       GeocoderConfig `yaml:"geocoder"`
	Storage        StorageConfig  `yaml:"storage"`
	Badges         BadgesConfig   `yaml:"badges"`
	Jobs           JobsConfig     `yaml:"jobs"`
}

// EngineConfig selects the classifier/suggester provider and the prompt versions it uses.
type EngineConfig struct {
	// Provider is one of ollama, openai or demo.
	Provider      string         `yaml:"provider"`
	Model         string         `yaml:"model"`
	Template      PromptTemplate `yaml:"template"`
	Timeout       time.Duration  `yaml:"timeout"`
	SuggestDaily  int            `yaml:"suggest_daily"`
	SuggestWeekly int            `yaml:"suggest_weekly"`
}

type PromptTemplate struct {
	Version string `yaml:"version"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type GeocoderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	// Backend is local or s3.
	Backend string   `yaml:"backend"`
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

type BadgesConfig struct {
	// DailyWindow is literal or same_day.
	DailyWindow string `yaml:"daily_window"`
}

type JobsConfig struct {
	Workers     int `yaml:"workers"`
	MaxAttempts int `yaml:"max_attempts"`
}

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderDemo   = "demo"

	StorageLocal = "local"
	StorageS3    = "s3"

	defaultMaxUpload = 16 << 20
)

// LoadConfig builds the configuration from the environment (including a .env file in
// the working directory, when present) and overlays the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Env:            getEnv("WILDSPOT_ENV", "development"),
		Addr:           getEnv("WILDSPOT_ADDR", ":8080"),
		APITimeout:     getEnvDuration("WILDSPOT_TIMEOUT", 15*time.Second),
		DatabasePath:   getEnv("WILDSPOT_DATABASE_PATH", "wildspot.db"),
		MigrateOnStart: getEnvBool("WILDSPOT_MIGRATE_ON_START", true),
		PublicBaseURL:  getEnv("WILDSPOT_PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:       getEnv("WILDSPOT_LOG_LEVEL", "info"),
		MaxUploadBytes: defaultMaxUpload,
		EngineConfig: EngineConfig{
			Provider: getEnv("WILDSPOT_PROVIDER", ProviderOllama),
			Model:    getEnv("WILDSPOT_MODEL", ""),
		},
		Ollama: OllamaConfig{
			BaseURL: getEnv("WILDSPOT_OLLAMA_URL", "http://localhost:11434"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Geocoder: GeocoderConfig{
			BaseURL: getEnv("WILDSPOT_GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		},
		Storage: StorageConfig{
			Backend: getEnv("WILDSPOT_STORAGE", StorageLocal),
			Dir:     getEnv("WILDSPOT_UPLOAD_DIR", "uploads"),
			S3: S3Config{
				Bucket:          os.Getenv("WILDSPOT_S3_BUCKET"),
				Region:          os.Getenv("WILDSPOT_S3_REGION"),
				Endpoint:        os.Getenv("WILDSPOT_S3_ENDPOINT"),
				AccessKeyID:     os.Getenv("WILDSPOT_S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("WILDSPOT_S3_SECRET_ACCESS_KEY"),
			},
		},
		Badges: BadgesConfig{DailyWindow: getEnv("WILDSPOT_DAILY_WINDOW", "literal")},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	return cfg, nil
}

// Validate fills unset values with defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUpload
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	e := &c.EngineConfig
	if e.Provider == "" {
		e.Provider = ProviderOllama
	}
	if e.Template.Version == "" {
		e.Template.Version = "v1"
	}
	if e.Timeout <= 0 {
		e.Timeout = 60 * time.Second
	}
	if e.SuggestDaily <= 0 {
		e.SuggestDaily = 3
	}
	if e.SuggestWeekly <= 0 {
		e.SuggestWeekly = 2
	}
	switch e.Provider {
	case ProviderOllama:
		if e.Model == "" {
			return errors.New("engine.model is required for the ollama provider")
		}
		if c.Ollama.BaseURL == "" {
			return errors.New("ollama.base_url is required")
		}
	case ProviderOpenAI:
		if e.Model == "" {
			e.Model = "gpt-4o"
		}
	case ProviderDemo:
	default:
		return fmt.Errorf("unknown engine.provider %q", e.Provider)
	}

	switch c.Storage.Backend {
	case "", StorageLocal:
		c.Storage.Backend = StorageLocal
		if c.Storage.Dir == "" {
			c.Storage.Dir = "uploads"
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Badges.DailyWindow {
	case "":
		c.Badges.DailyWindow = "literal"
	case "literal", "same_day":
	default:
		return fmt.Errorf("unknown badges.daily_window %q", c.Badges.DailyWindow)
	}

	if c.Geocoder.Timeout <= 0 {
		c.Geocoder.Timeout = 10 * time.Second
	}
	if c.Geocoder.UserAgent == "" {
		c.Geocoder.UserAgent = "wildspot/1.0"
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 1
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 5
	}
	return nil
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return l, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}
