package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates every runtime setting of the service.
type Config struct {
	Server Server
	Auth   Auth
	Store  Store
}

// Server describes the HTTP listener.
type Server struct {
	Addr         string
	ClientOrigin string
}

// Auth describes credential issuance and the realtime handshake.
type Auth struct {
	JWTSecret        string
	TokenTTL         time.Duration
	HandshakeTimeout time.Duration
}

// Store describes persistence.
type Store struct {
	DatabasePath string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServer()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuth()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Auth:   auth,
		Store: Store{
			DatabasePath: getEnvOrDefault("DATABASE_PATH", "data/planextra.db"),
		},
	}, nil
}

func loadServer() (Server, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	addr := port
	if !strings.Contains(port, ":") {
		// Allow either ":8080"/"127.0.0.1:8080" or a bare port number.
		if strings.Contains(port, " ") {
			return Server{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	return Server{
		Addr:         addr,
		ClientOrigin: getEnvOrDefault("CLIENT_ORIGIN", "http://localhost:3000"),
	}, nil
}

func loadAuth() (Auth, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return Auth{}, errors.New("JWT_SECRET is required")
	}

	ttl, err := parseDurationEnv("JWT_TTL", 24*time.Hour)
	if err != nil {
		return Auth{}, err
	}

	handshake, err := parseDurationEnv("AUTH_HANDSHAKE_TIMEOUT", 10*time.Second)
	if err != nil {
		return Auth{}, err
	}

	return Auth{JWTSecret: secret, TokenTTL: ttl, HandshakeTimeout: handshake}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
