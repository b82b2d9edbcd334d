package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application. Everything comes from
// the environment; there are no process-wide mutable settings.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Captcha    CaptchaConfig    `json:"captcha"`
	Sources    SourcesConfig    `json:"sources"`
	Extraction ExtractionConfig `json:"extraction"`
	Redis      RedisConfig      `json:"redis"`
	Log        LogConfig        `json:"log"`
	Security   SecurityConfig   `json:"security"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// CaptchaConfig holds challenge-solving service configuration.
type CaptchaConfig struct {
	APIKey          string        `json:"-"`
	SubmitURL       string        `json:"submit_url"`
	ResultURL       string        `json:"result_url"`
	PollInterval    time.Duration `json:"poll_interval"`
	MaxPollAttempts int           `json:"max_poll_attempts"`
	HTTPTimeout     time.Duration `json:"http_timeout"`
}

// SourcesConfig holds the court portal addresses and scrape behavior.
type SourcesConfig struct {
	SuperiorCourtBaseURL string        `json:"superior_court_base_url"`
	StateCourtBaseURL    string        `json:"state_court_base_url"`
	UserAgent            string        `json:"user_agent"`
	RequestTimeout       time.Duration `json:"request_timeout"`
	// RequestsPerMinute throttles each portal host.
	RequestsPerMinute int `json:"requests_per_minute"`
}

// ExtractionConfig holds orchestration loop configuration.
type ExtractionConfig struct {
	Workers     int           `json:"workers"`
	TaskTimeout time.Duration `json:"task_timeout"`
	CacheTTL    time.Duration `json:"cache_ttl"`
	UploadDir   string        `json:"upload_dir"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"-"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds API security configuration.
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// Load builds the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 240),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Captcha: CaptchaConfig{
			APIKey:          getEnv("CAPTCHA_API_KEY", ""),
			SubmitURL:       getEnv("CAPTCHA_SUBMIT_URL", "https://2captcha.com/in.php"),
			ResultURL:       getEnv("CAPTCHA_RESULT_URL", "https://2captcha.com/res.php"),
			PollInterval:    time.Duration(getEnvAsInt("CAPTCHA_POLL_INTERVAL", 5)) * time.Second,
			MaxPollAttempts: getEnvAsInt("CAPTCHA_MAX_POLL_ATTEMPTS", 24),
			HTTPTimeout:     time.Duration(getEnvAsInt("CAPTCHA_HTTP_TIMEOUT", 30)) * time.Second,
		},
		Sources: SourcesConfig{
			SuperiorCourtBaseURL: getEnv("STJ_BASE_URL", "https://processo.stj.jus.br"),
			StateCourtBaseURL:    getEnv("TJGO_BASE_URL", "https://projudi.tjgo.jus.br"),
			UserAgent:            getEnv("SCRAPE_USER_AGENT", ""),
			RequestTimeout:       time.Duration(getEnvAsInt("SCRAPE_TIMEOUT", 60)) * time.Second,
			RequestsPerMinute:    getEnvAsInt("SCRAPE_RPM", 30),
		},
		Extraction: ExtractionConfig{
			Workers:     getEnvAsInt("EXTRACTION_WORKERS", 3),
			TaskTimeout: time.Duration(getEnvAsInt("EXTRACTION_TASK_TIMEOUT", 180)) * time.Second,
			CacheTTL:    time.Duration(getEnvAsInt("EXTRACTION_CACHE_TTL", 3600)) * time.Second,
			UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
				CleanupInterval:   time.Duration(getEnvAsInt("RATE_LIMIT_CLEANUP", 60)) * time.Second,
			},
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: false,
			},
		},
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
