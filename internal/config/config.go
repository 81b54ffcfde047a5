package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Host string
	Port string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBName      string
	DBUser      string
	DBPass      string
	DBSSLMode   string

	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	MailFrom    string
	SMTPTimeout time.Duration

	BaseURL        string
	CompanyName    string
	LogoURL        string
	CompanyWebsite string

	TemplatesDir string
	StaticDir    string

	RateLimitMax    int
	RateLimitWindow time.Duration
	TrustProxy      bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("APP_ENV", "production"),
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "3000"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBHost:         getEnv("PG_HOST", "localhost"),
		DBPort:         getEnv("PG_PORT", "5432"),
		DBName:         getEnv("PG_DATABASE", "newsletter"),
		DBUser:         getEnv("PG_USER", "postgres"),
		DBPass:         getEnv("PG_PASSWORD", ""),
		DBSSLMode:      getEnv("PG_SSLMODE", "prefer"),
		SMTPHost:       getEnv("SMTP_SERVER", ""),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPass:       getEnv("SMTP_PASSWORD", ""),
		BaseURL:        getEnv("BASE_URL", ""),
		CompanyName:    getEnv("COMPANY_NAME", "Dev Da vez"),
		LogoURL:        getEnv("LOGO_URL", "https://devdavez.com.br/img/logo-dark.png"),
		CompanyWebsite: getEnv("COMPANY_WEBSITE", "https://www.devdavez.com.br"),
		TemplatesDir:   getEnv("TEMPLATES_DIR", "templates"),
		StaticDir:      getEnv("STATIC_DIR", "static"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
	}
	cfg.MailFrom = getEnv("MAIL_FROM", cfg.SMTPUser)

	var err error
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.SMTPTimeout, err = getEnvDuration("SMTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = getEnvInt("RATE_LIMIT_MAX", 2); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TrustProxy, err = getEnvBool("TRUST_PROXY", false); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_SERVER not configured")
	}
	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be > 0")
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if cfg.SMTPTimeout <= 0 {
		return nil, fmt.Errorf("SMTP_TIMEOUT must be > 0")
	}

	return cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL built
// from the PG_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPass),
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.DBSSLMode}}.Encode()
	}
	return u.String()
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
