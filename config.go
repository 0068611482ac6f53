package main

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const devSecretKey = "dev-secret-key-change-me"

type Config struct {
	Port           string
	DBPath         string
	SecretKey      string
	SecureCookies  bool
	AllowedOrigins []string

	// Initial teacher account, created once when the users table is empty.
	BootstrapUsername string
	BootstrapEmail    string
	BootstrapPassword string
}

func LoadConfig() Config {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := Config{
		Port:              getenv("PORT", "8080"),
		DBPath:            getenv("STUDY_DB_PATH", "study.db"),
		SecretKey:         getenv("SECRET_KEY", devSecretKey),
		SecureCookies:     os.Getenv("SECURE_COOKIES") == "true",
		BootstrapUsername: os.Getenv("STUDY_TEACHER_USERNAME"),
		BootstrapEmail:    os.Getenv("STUDY_TEACHER_EMAIL"),
		BootstrapPassword: os.Getenv("STUDY_TEACHER_PASSWORD"),
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	if cfg.SecretKey == devSecretKey {
		log.Printf("WARNING: using the default SECRET_KEY; set SECRET_KEY in production")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
