package main

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	BaseDir string
}

func mustConfig() Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := Config{
		Port:    getenv("PORT", "8080"),
		BaseDir: getenv("ARTIFACTS_DIR", "."),
	}

	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
