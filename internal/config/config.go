package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Share     ShareConfig
	Worker    WorkerConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

type StoreConfig struct {
	Driver            string
	Path              string
	MongoURI          string
	MongoDB           string
	ReportsCollection string
}

type AIConfig struct {
	Provider      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiKey     string
	GeminiModel   string
	Timeout       time.Duration
}

// Enabled reports whether the selected provider has a credential.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiKey != ""
	default:
		return c.OpenAIKey != ""
	}
}

type RateLimitConfig struct {
	Max       int
	Window    time.Duration
	GlobalRPS int
}

type ShareConfig struct {
	PublicBaseURL string
	QRSize        int
}

type WorkerConfig struct {
	Count int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Driver:            strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
			Path:              getEnv("DB_PATH", "./data/fixr.db"),
			MongoURI:          getEnv("MONGODB_URI", ""),
			MongoDB:           getEnv("MONGODB_DB", "fixr"),
			ReportsCollection: getEnv("REPORTS_COLLECTION", "reports"),
		},
		AI: AIConfig{
			Provider:      strings.ToLower(getEnv("AI_PROVIDER", ProviderOpenAI)),
			OpenAIKey:     getEnv("OPENAI_API_KEY", getEnv("NEXOS_API_KEY", "")),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			GeminiKey:     getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:       getEnvDuration("AI_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Max:       getEnvInt("RATE_LIMIT_MAX", 10),
			Window:    getEnvDuration("RATE_LIMIT_WINDOW", 10*time.Minute),
			GlobalRPS: getEnvInt("GLOBAL_RPS", 20),
		},
		Share: ShareConfig{
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
			QRSize:        getEnvInt("QR_SIZE", 256),
		},
		Worker: WorkerConfig{
			Count: getEnvInt("WORKER_COUNT", 4),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	switch c.Store.Driver {
	case StoreSQLite:
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("invalid store driver: %s", c.Store.Driver)
	}

	if c.AI.Provider != ProviderOpenAI && c.AI.Provider != ProviderGemini {
		return fmt.Errorf("invalid AI provider: %s", c.AI.Provider)
	}
	if c.AI.Timeout < time.Second || c.AI.Timeout > 30*time.Second {
		return fmt.Errorf("AI timeout must be between 1s and 30s, got %s", c.AI.Timeout)
	}

	if c.RateLimit.Max < 1 {
		return fmt.Errorf("rate limit max must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.RateLimit.GlobalRPS < 1 {
		return fmt.Errorf("global rps must be positive")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be positive")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
