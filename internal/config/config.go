// Package config loads runtime configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// TokenPersistence describes how the OAuth credential is persisted across
// process restarts.
type TokenPersistence int

const (
	// PersistFile writes the credential to TokensFile on every mutation.
	PersistFile TokenPersistence = iota

	// PersistEnv means the credential was injected via GOOGLE_TOKENS and the
	// process cannot persist refreshed credentials itself; refreshed values
	// are emitted through the operator log instead.
	PersistEnv
)

// DefaultTokensFile is the development-mode credential file, relative to the
// working directory.
const DefaultTokensFile = "tokens.json"

// Config holds all runtime configuration for the drivebridge server.
type Config struct {
	// HTTPAddr is the listen address of the API server (e.g. ":5000").
	HTTPAddr string

	// GoogleClientID and GoogleClientSecret identify the OAuth2 application.
	GoogleClientID     string
	GoogleClientSecret string

	// GoogleRedirectURI is the OAuth2 callback URL registered with Google.
	GoogleRedirectURI string

	// RootFolderID is the default upload destination. Uploads that carry no
	// explicit folder header are rejected when it is empty.
	RootFolderID string

	// GoogleTokens is an environment-injected credential JSON blob. When set,
	// token persistence is read-only (PersistEnv).
	GoogleTokens string

	// TokensFile is the credential file used in PersistFile mode.
	TokensFile string

	// CORSOrigins are the allowed browser origins, in addition to the
	// development default.
	CORSOrigins []string

	// MetricsEnabled controls the dedicated metrics server.
	MetricsEnabled bool

	// MetricsAddr is the metrics server listen address.
	MetricsAddr string
}

// Load reads configuration from a .env file (if present) and the process
// environment. Flags layered on top by the serve command take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using environment variables only")
	}

	cfg := &Config{
		HTTPAddr:           listenAddr(getEnv("PORT", "5000")),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:5000/auth/google/callback"),
		RootFolderID:       strings.TrimSpace(getEnv("GOOGLE_DRIVE_FOLDER_ID", "")),
		GoogleTokens:       getEnv("GOOGLE_TOKENS", ""),
		TokensFile:         getEnv("TOKENS_FILE", DefaultTokensFile),
		CORSOrigins:        splitOrigins(getEnv("CORS_ORIGIN", "")),
		MetricsEnabled:     getEnv("METRICS_ENABLED", "true") != "false",
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),
	}

	return cfg, nil
}

// Validate checks the settings needed before the server can start at all.
// The root folder ID is deliberately not required here: its absence is a
// per-request FolderNotConfigured error, matching how operators discover it.
func (c *Config) Validate() error {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	return nil
}

// TokenMode reports how credentials are persisted.
func (c *Config) TokenMode() TokenPersistence {
	if c.GoogleTokens != "" {
		return PersistEnv
	}
	return PersistFile
}

func listenAddr(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
