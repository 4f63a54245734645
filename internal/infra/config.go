package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string `validate:"required,oneof=development production test cli"`
	Port               string `validate:"required,numeric"`
	DataDir            string `validate:"required"`
	DatabasePath       string `validate:"required"`
	KieAPIKey          string
	KieBaseURL         string `validate:"required,url"`
	KieUploadURL       string `validate:"required,url"`
	KieUploadPath      string `validate:"required"`
	AnthropicAPIKey    string
	AnthropicBaseURL   string        `validate:"required,url"`
	AnthropicModel     string        `validate:"required"`
	PollInterval       time.Duration `validate:"gt=0"`
	PollMaxAttempts    int           `validate:"gt=0"`
	ProviderTimeout    time.Duration `validate:"gt=0"`
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int      `validate:"gte=0"`
	CORSAllowedOrigins []string `validate:"dive,url"`
	PreviewMaxDim      int      `validate:"gte=16"`
	MaxUploadBytes     int64    `validate:"gt=0"`
}

var configValidator = validator.New()

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "./data")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DataDir:            dataDir,
		DatabasePath:       getEnv("DATABASE_PATH", filepath.Join(dataDir, "videokit.db")),
		KieAPIKey:          strings.TrimSpace(os.Getenv("KIE_API_KEY")),
		KieBaseURL:         strings.TrimRight(getEnv("KIE_BASE_URL", "https://api.kie.ai"), "/"),
		KieUploadURL:       getEnv("KIE_UPLOAD_URL", "https://kieai.redpandaai.co/api/file-stream-upload"),
		KieUploadPath:      getEnv("KIE_UPLOAD_PATH", "video-kit"),
		AnthropicAPIKey:    strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicBaseURL:   strings.TrimRight(getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"), "/"),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		PollInterval:       time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)),
		PollMaxAttempts:    getEnvInt("POLL_MAX_ATTEMPTS", 20),
		ProviderTimeout:    time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		PreviewMaxDim:      getEnvInt("PREVIEW_MAX_DIMENSION", 512),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
	}

	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// PollTimeoutMessage describes the overall poll budget in user-facing terms.
func (c *Config) PollTimeoutMessage() string {
	budget := c.PollInterval * time.Duration(c.PollMaxAttempts)
	return fmt.Sprintf("Generation timeout (exceeded %s)", budget.Round(time.Second))
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
