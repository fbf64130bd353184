package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	HTTPAddr  string
	RedisAddr string
	RedisPass string

	JWTPublicKeyPath string
	JWTIssuer        string
	JWTAudience      string
}

func Load() AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("Engagement: No .env file found, relying on system env vars")
	}
	return AppConfig{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8021"),
		RedisAddr: getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/session.pub"),
		JWTIssuer:        getEnv("JWT_ISSUER", "auth-service"),
		JWTAudience:      getEnv("JWT_AUDIENCE", "engagement-service"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
