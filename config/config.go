package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port           string
	Storage        StorageConfig
	JWTSecret      string
	Google         GoogleConfig
	AllowedOrigins []string
	Location       *time.Location
}

type StorageConfig struct {
	Backend       string // memory | mongo | postgres
	MongoURI      string
	MongoDatabase string
	DB            DBConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load reads .env (when present) and the process environment. Missing
// required variables panic, the same as a failed connection would at boot.
func Load(log *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system env")
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", "memory")),
			MongoDatabase: getEnv("MONGODB_DATABASE", "nutri"),
		},
		JWTSecret: mustEnv("JWT_SECRET", log),
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		},
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	switch cfg.Storage.Backend {
	case "memory":
	case "mongo":
		cfg.Storage.MongoURI = mustEnv("MONGODB_URI", log)
	case "postgres":
		cfg.Storage.DB = DBConfig{
			Host:     mustEnv("DB_HOST", log),
			Port:     getEnv("DB_PORT", "5432"),
			User:     mustEnv("DB_USER", log),
			Password: mustEnv("DB_PASSWORD", log),
			Name:     mustEnv("DB_NAME", log),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		}
	default:
		log.Error("Unknown storage backend", zap.String("backend", cfg.Storage.Backend))
		panic("unknown STORAGE_BACKEND: " + cfg.Storage.Backend)
	}

	tz := getEnv("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("Unknown TIMEZONE, falling back to UTC", zap.String("timezone", tz), zap.Error(err))
		loc = time.UTC
	}
	cfg.Location = loc

	return cfg
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func mustEnv(key string, log *zap.Logger) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	log.Error("Required environment variable is not set", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
