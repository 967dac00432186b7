package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	// Session tokens
	JWTSecret         string
	SessionTTLMinutes int

	// CORS
	AllowedOrigins []string

	// Redis (session revocation); empty addr disables it
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Tracing
	OTLPEndpoint string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 4000)
	dbURL := buildDBURL()

	origins := strings.Split(getEnv("FRONTEND_ORIGINS", "http://localhost:5173"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return Config{
		Env:               env,
		Port:              port,
		DBURL:             dbURL,
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		SessionTTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 60),
		AllowedOrigins:    origins,
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		OTLPEndpoint:      getEnv("OTLP_ENDPOINT", ""),
	}
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "nutriplan")
	pass := getEnv("DB_PASSWORD", "nutriplan")
	name := getEnv("DB_NAME", "nutriplan")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}
