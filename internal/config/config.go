// Package config loads application configuration from the environment,
// optionally seeded from a .env file in the working directory.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultSessionSecret is the fallback session signing key. Running with it
// is only acceptable for local development; serve warns when it is in use.
const DefaultSessionSecret = "changeme-please"

// Config holds the credentials and endpoints the server needs. Every field
// maps to an environment variable.
type Config struct {
	// Google OAuth client used for the web sign-in flow.
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`

	// SessionSecretKey signs session cookies.
	SessionSecretKey string `envconfig:"SESSION_SECRET_KEY" default:"changeme-please"`

	// OpenRouter (OpenAI-compatible) backend for summarization.
	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	OpenRouterModel   string `envconfig:"OPENROUTER_MODEL" default:"x-ai/grok-4-fast:free"`
}

// Load reads configuration from the environment. A .env file is loaded first
// when present; absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	return &cfg, nil
}

// ValidateOAuth checks that the Google OAuth client is configured. The web
// sign-in flow cannot run without it.
func (c *Config) ValidateOAuth() error {
	if c.GoogleClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is required")
	}
	return nil
}

// ValidateLLM checks that the summarization backend is configured.
func (c *Config) ValidateLLM() error {
	if c.OpenRouterAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if c.OpenRouterBaseURL == "" {
		return fmt.Errorf("OPENROUTER_BASE_URL is required")
	}
	return nil
}

// UsingDefaultSessionSecret reports whether the session signing key was left
// at its insecure default.
func (c *Config) UsingDefaultSessionSecret() bool {
	return c.SessionSecretKey == DefaultSessionSecret
}
