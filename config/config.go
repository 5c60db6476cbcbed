package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	DBURL    string
	RedisURL string

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigin  string
	FrontendURL string
	PublicURL   string

	Mail MailConfig

	Google GoogleConfig
}

type MailConfig struct {
	Provider string // smtp | mailjet | log
	From     string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string

	MailjetPublicKey  string
	MailjetPrivateKey string
}

type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	FrontendRedirect string
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads the configuration and exits the process when a required value is missing.
func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (*Config, error) {
	var missing []string
	mustEnv := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBURL:    mustEnv("DB_URL"),
		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret: mustEnv("JWT_SECRET"),

		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:3000"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		Mail: MailConfig{
			Provider:          strings.ToLower(getEnv("MAIL_PROVIDER", "log")),
			From:              getEnv("MAIL_FROM", "no-reply@localhost"),
			SMTPHost:          getEnv("SMTP_HOST", ""),
			SMTPPort:          getEnv("SMTP_PORT", "587"),
			SMTPUser:          getEnv("SMTP_USER", ""),
			SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
			MailjetPublicKey:  getEnv("MAILJET_PUBLIC_KEY", ""),
			MailjetPrivateKey: getEnv("MAILJET_PRIVATE_KEY", ""),
		},

		Google: GoogleConfig{
			ClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:      getEnv("GOOGLE_REDIRECT_URL", ""),
			FrontendRedirect: getEnv("GOOGLE_FRONTEND_REDIRECT", ""),
		},
	}
	cfg.PublicURL = strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+cfg.Port), "/")

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("JWT_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, errors.New("JWT_TTL must be positive")
	}
	cfg.JWTTTL = ttl

	switch cfg.Mail.Provider {
	case "log":
	case "smtp":
		if cfg.Mail.SMTPHost == "" {
			return nil, errors.New("MAIL_PROVIDER=smtp requires SMTP_HOST")
		}
	case "mailjet":
		if cfg.Mail.MailjetPublicKey == "" || cfg.Mail.MailjetPrivateKey == "" {
			return nil, errors.New("MAIL_PROVIDER=mailjet requires MAILJET_PUBLIC_KEY and MAILJET_PRIVATE_KEY")
		}
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.Mail.Provider)
	}

	return cfg, nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
