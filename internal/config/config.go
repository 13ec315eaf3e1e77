package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config.yaml"
	configPathEnv     = "DIGEST_CONFIG"
)

// Config holds the run configuration and secrets. It is built once at startup
// and passed to every component that needs it.
type Config struct {
	Period              string        `yaml:"period"`
	ArticlesPerCategory int           `yaml:"articles_per_category"`
	Categories          Categories    `yaml:"categories"`
	RSSSources          RSSSources    `yaml:"rss_sources"`
	Email               EmailConfig   `yaml:"email"`
	LLM                 LLMConfig     `yaml:"llm"`
	Storage             StorageConfig `yaml:"storage"`
	OutputDir           string        `yaml:"output_dir"`
	Schedule            string        `yaml:"schedule"` // cron expression for the server

	// Server settings
	Port string `yaml:"-"`
	Host string `yaml:"-"`

	LogLevel string `yaml:"log_level"`

	Secrets Secrets `yaml:"-"`
}

// Categories holds the keyword lists used by the categorizer.
type Categories struct {
	Tech    []string `yaml:"tech" json:"tech"`
	Startup []string `yaml:"startup" json:"startup"`
}

// RSSSources groups feed URLs by kind. Groups are fetched in this order.
type RSSSources struct {
	HN     []string `yaml:"hn" json:"hn"`
	X      []string `yaml:"x" json:"x"`
	Custom []string `yaml:"custom" json:"custom"`
}

// EmailConfig holds SMTP settings from the config file.
type EmailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
}

// LLMConfig selects summarization providers and models.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OpenAIModel string `yaml:"openai_model"`
}

// StorageConfig selects where digests are saved.
type StorageConfig struct {
	Bucket string `yaml:"bucket"`
}

// Secrets are sourced from the environment only.
type Secrets struct {
	GeminiAPIKey  string `json:"-"`
	OpenAIAPIKey  string `json:"-"`
	EmailTo       string `json:"-"`
	EmailFrom     string `json:"-"`
	EmailPassword string `json:"-"`
	SMTPHost      string `json:"-"`
	SMTPPort      int    `json:"-"`
}

// Load reads the YAML config file and environment variables (.env included).
// An empty path falls back to $DIGEST_CONFIG, then config.yaml.
// A missing or malformed file is a configuration error.
func Load(path string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	if path == "" {
		path = getEnvOrDefault(configPathEnv, defaultConfigPath)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "config", Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	return Parse(raw)
}

// Parse builds a Config from YAML bytes plus environment overrides.
func Parse(raw []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, &ConfigError{Field: "config", Message: fmt.Sprintf("parsing yaml: %v", err)}
	}

	cfg.applyEnv()

	return cfg, cfg.validate()
}

func defaultConfig() *Config {
	return &Config{
		Period:              "24h",
		ArticlesPerCategory: 10,
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			OpenAIModel: "gpt-4o-mini",
		},
		OutputDir: ".",
		Schedule:  "0 7 * * *",
	}
}

func (c *Config) applyEnv() {
	c.Port = getEnvOrDefault("PORT", "8080")
	c.Host = getEnvOrDefault("HOST", "0.0.0.0")
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", orDefault(c.LogLevel, "info"))
	c.Storage.Bucket = getEnvOrDefault("DIGEST_BUCKET", c.Storage.Bucket)
	c.RSSSources.Custom = append(c.RSSSources.Custom, parseStringSlice(os.Getenv("RSS_CUSTOM_FEEDS"))...)

	smtpHost := orDefault(c.Email.SMTPHost, "smtp.gmail.com")
	smtpPort := c.Email.SMTPPort
	if smtpPort == 0 {
		smtpPort = 587
	}

	c.Secrets = Secrets{
		GeminiAPIKey:  getEnvOrDefault("GEMINI_API_KEY", ""),
		OpenAIAPIKey:  getEnvOrDefault("OPENAI_API_KEY", ""),
		EmailTo:       getEnvOrDefault("EMAIL_TO", ""),
		EmailFrom:     getEnvOrDefault("EMAIL_FROM", ""),
		EmailPassword: getEnvOrDefault("EMAIL_PASSWORD", ""),
		SMTPHost:      getEnvOrDefault("SMTP_HOST", smtpHost),
		SMTPPort:      getEnvOrDefaultInt("SMTP_PORT", smtpPort),
	}
}

// validate checks values that have no sensible default
func (c *Config) validate() error {
	if _, err := ParsePeriod(c.Period); err != nil {
		return &ConfigError{Field: "period", Message: err.Error()}
	}
	if c.ArticlesPerCategory <= 0 {
		return &ConfigError{Field: "articles_per_category", Message: "must be positive"}
	}
	return nil
}

var periodRe = regexp.MustCompile(`^(\d+)([dh])$`)

// MaxPeriod is the longest representable period. Larger values are clamped to it.
const MaxPeriod = time.Duration(math.MaxInt64)

// ParsePeriod converts "<n>h" or "<n>d" into a duration. Any other form is an error.
// Values beyond MaxPeriod are clamped so a longer period never keeps fewer articles.
func ParsePeriod(period string) (time.Duration, error) {
	match := periodRe.FindStringSubmatch(period)
	if match == nil {
		return 0, fmt.Errorf("%w: %q (use a format like \"24h\" or \"3d\")", ErrInvalidPeriod, period)
	}

	unit := time.Hour
	if match[2] == "d" {
		unit = 24 * time.Hour
	}

	value, err := strconv.ParseInt(match[1], 10, 64)
	if errors.Is(err, strconv.ErrRange) || value > int64(MaxPeriod/unit) {
		return MaxPeriod, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidPeriod, period, err)
	}
	return time.Duration(value) * unit, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// parseStringSlice parses comma-separated string into slice
func parseStringSlice(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}
