package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config carries the runtime settings for the recall service. Everything
// comes from the environment; only DATABASE_URL has no default.
type Config struct {
	DatabaseURL string
	Port        string
	RedisAddr   string

	// AuthHeader names the trusted header carrying the authenticated
	// user's email, set by the fronting auth proxy.
	AuthHeader string
	AppsDomain string

	DirectoryEndpoint string
	IMAPAddr          string

	// CredentialsFile points at the service-account key with domain-wide
	// delegation. DirectorySubject is the admin account impersonated for
	// Directory API calls.
	CredentialsFile  string
	DirectorySubject string

	Workers           int
	RecallConcurrency int
	RetrievalWorkers  int
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	ShutdownTimeout   time.Duration
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingAppsDomain  = errors.New("APPS_DOMAIN is required")
)

func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		Port:              getEnv("PORT", "8080"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		AuthHeader:        getEnv("AUTH_EMAIL_HEADER", "X-Authenticated-Email"),
		AppsDomain:        os.Getenv("APPS_DOMAIN"),
		DirectoryEndpoint: getEnv("DIRECTORY_ENDPOINT", "https://admin.googleapis.com/admin/directory/v1"),
		IMAPAddr:          getEnv("IMAP_ADDR", "imap.gmail.com:993"),
		CredentialsFile:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		DirectorySubject:  os.Getenv("DIRECTORY_SUBJECT"),
		Workers:           clampWorkers(getIntEnv("RECALL_WORKERS", 2)),
		RecallConcurrency: getIntEnv("RECALL_CONCURRENCY", 10),
		RetrievalWorkers:  getIntEnv("RETRIEVAL_WORKERS", 6),
		LeaseDuration:     time.Duration(getIntEnv("TASK_LEASE_SECONDS", 120)) * time.Second,
		PollInterval:      time.Duration(getIntEnv("TASK_POLL_MILLIS", 1000)) * time.Millisecond,
		ShutdownTimeout:   time.Duration(getIntEnv("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
	cfg.HeartbeatInterval = cfg.LeaseDuration / 2

	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}
	if cfg.AppsDomain == "" {
		return Config{}, ErrMissingAppsDomain
	}
	return cfg, nil
}

func clampWorkers(workers int) int {
	if workers <= 0 {
		return 2
	}
	if workers > 10 {
		return 10
	}
	return workers
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
