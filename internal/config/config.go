package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/notesummarizer/internal/summarize"
)

type Config struct {
	// Server
	Port string
	Env  string // development, production

	// Security
	SessionSecret      string
	SecureCookies      bool
	RateLimitPerMinute int
	MaintenanceMode    bool

	// Workspaces
	WorkspaceTTL    time.Duration
	MaxUploadSizeMB int // 0 means uncapped

	// Summarizer
	SummarizerBackend   string
	GenerateDelay       time.Duration
	GenerateTimeout     time.Duration
	GeneratePerMinute   int // 0 means unlimited
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	OpenAIMaxRetries    int
	OpenAIMaxTokens     int
	CacheEnabled        bool
	CacheDir            string // empty keeps the cache in memory
	CacheTTL            time.Duration
	PromptTemplatesFile string

	// SMTP
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPass       string
	SMTPFromEmail  string
	SMTPFromName   string
	SMTPMaxRetries int
	ShareDelay     time.Duration
	ShareTimeout   time.Duration
	PGPKeyringPath string
}

func Load() (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()
	return LoadArgs(os.Args[1:])
}

// LoadArgs reads the environment and then applies command line overrides.
func LoadArgs(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", getEnv("PORT", "8080"), "Server port")
	fs.StringVar(&cfg.Env, "env", getEnv("ENV", "development"), "Environment (development, production)")
	fs.StringVar(&cfg.SummarizerBackend, "summarizer", getEnv("SUMMARIZER_BACKEND", summarize.BackendCanned), "Summarizer backend (canned, openai)")
	fs.BoolVar(&cfg.MaintenanceMode, "maintenance", getEnvBool("MAINTENANCE_MODE", false), "Serve the maintenance page")

	cfg.SessionSecret = getEnv("SESSION_SECRET", "")
	cfg.SecureCookies = getEnvBool("SECURE_COOKIES", false)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)

	cfg.WorkspaceTTL = getEnvDuration("WORKSPACE_TTL", 2*time.Hour)
	cfg.MaxUploadSizeMB = getEnvInt("MAX_UPLOAD_SIZE_MB", 10)

	cfg.GenerateDelay = getEnvDuration("GENERATE_DELAY", 2*time.Second)
	cfg.GenerateTimeout = getEnvDuration("GENERATE_TIMEOUT", 2*time.Minute)
	cfg.GeneratePerMinute = getEnvInt("GENERATE_PER_MINUTE", 30)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", "")
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", "")
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAIMaxRetries = getEnvInt("OPENAI_MAX_RETRIES", 2)
	cfg.OpenAIMaxTokens = getEnvInt("OPENAI_MAX_TOKENS", 0)
	cfg.CacheEnabled = getEnvBool("SUMMARY_CACHE", true)
	cfg.CacheDir = getEnv("SUMMARY_CACHE_DIR", "")
	cfg.CacheTTL = getEnvDuration("SUMMARY_CACHE_TTL", 24*time.Hour)
	cfg.PromptTemplatesFile = getEnv("PROMPT_TEMPLATES_FILE", "")

	cfg.SMTPHost = getEnv("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUser = getEnv("SMTP_USER", "")
	cfg.SMTPPass = getEnv("SMTP_PASS", "")
	cfg.SMTPFromEmail = getEnv("SMTP_FROM_EMAIL", "")
	cfg.SMTPFromName = getEnv("SMTP_FROM_NAME", "AI Meeting Notes Summarizer")
	cfg.SMTPMaxRetries = getEnvInt("SMTP_MAX_RETRIES", 2)
	cfg.ShareDelay = getEnvDuration("SHARE_DELAY", 1500*time.Millisecond)
	cfg.ShareTimeout = getEnvDuration("SHARE_TIMEOUT", time.Minute)
	cfg.PGPKeyringPath = getEnv("PGP_KEYRING_PATH", "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.SummarizerBackend = strings.ToLower(strings.TrimSpace(cfg.SummarizerBackend))

	if cfg.SessionSecret == "" && cfg.IsDevelopment() {
		cfg.SessionSecret = randomSecret()
		slog.Warn("SESSION_SECRET not set, using a random secret; workspaces will not survive restarts")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}

	switch strings.ToLower(c.SummarizerBackend) {
	case summarize.BackendCanned:
	case summarize.BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai summarizer")
		}
	default:
		return fmt.Errorf("unknown summarizer backend %q", c.SummarizerBackend)
	}

	if c.MaxUploadSizeMB < 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must not be negative")
	}
	if c.SMTPHost != "" && c.SMTPFromEmail == "" {
		return fmt.Errorf("SMTP_FROM_EMAIL is required when SMTP_HOST is set")
	}
	if c.WorkspaceTTL <= 0 {
		return fmt.Errorf("WORKSPACE_TTL must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MaxUploadBytes returns the request body cap for uploads, or 0 when uncapped.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
