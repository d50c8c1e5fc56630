package config

import (
	"fmt"
	"os"
	"strings"
)

// minJWTSecretLen is the minimum HS256 signing key length we accept.
const minJWTSecretLen = 32

// Validate checks the configuration for structural errors. Each category
// has a sentinel error so callers can branch with errors.Is().
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (supported: gemini, ollama, openai)",
			ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}

	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.HistoryTTLMinutes < 1 || c.HistoryTTLMinutes > 7*24*60 {
		return fmt.Errorf("%w: %d minutes (must be 1 minute to 7 days)",
			ErrInvalidHistoryTTL, c.HistoryTTLMinutes)
	}
	if c.MaxHistoryMessages < 1 || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("invalid max history messages: %d (must be 1-%d)",
			c.MaxHistoryMessages, MaxAllowedHistoryMessages)
	}

	if c.MaxToolRounds < 1 || c.MaxToolRounds > 10 {
		return fmt.Errorf("%w: %d (must be 1-10)", ErrInvalidToolRounds, c.MaxToolRounds)
	}

	if !c.AuthDisabled {
		if c.JWTSecret == "" {
			return fmt.Errorf("%w: set ATLAS_JWT_SECRET or enable auth_disabled for local development",
				ErrMissingJWTSecret)
		}
		if len(c.JWTSecret) < minJWTSecretLen {
			return fmt.Errorf("%w: secret must be at least %d bytes",
				ErrInvalidJWTSecret, minJWTSecretLen)
		}
	}

	return nil
}

// ValidateProfile checks the downstream seat-profile configuration.
// Separate from Validate because the index subcommand never needs it.
func (c *Config) ValidateProfile() error {
	if strings.TrimSpace(c.Profile.BaseURL) == "" {
		return fmt.Errorf("%w: set ATLAS_PROFILE_BASE_URL", ErrMissingProfileBaseURL)
	}
	if !strings.HasPrefix(c.Profile.BaseURL, "http://") && !strings.HasPrefix(c.Profile.BaseURL, "https://") {
		return fmt.Errorf("%w: %q must start with http:// or https://",
			ErrMissingProfileBaseURL, c.Profile.BaseURL)
	}
	return nil
}
