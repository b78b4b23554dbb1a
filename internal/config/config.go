// Package config loads settings from a JSON file, the environment and
// command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults applied when no source sets a value.
const (
	DefaultTokenPath          = "token.json"
	DefaultListen             = "127.0.0.1:8081"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultRateLimitPerSecond = 1.0
	DefaultRateLimitBurst     = 5
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Config holds the configuration for the calendar assistant.
type Config struct {
	TokenPath             string `json:"token_path,omitempty"`              // Path to the stored OAuth token
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty"` // Google Cloud Console credentials file

	OpenAIAPIKey  string `json:"openai_api_key,omitempty"`
	OpenAIBaseURL string `json:"openai_base_url,omitempty"` // Any OpenAI-compatible endpoint
	OpenAIModel   string `json:"openai_model,omitempty"`

	DefaultTimezone string `json:"default_timezone,omitempty"` // IANA zone used when a prompt names none
	Listen          string `json:"listen,omitempty"`           // Address for the HTTP server

	AuditDBPath       string `json:"audit_db_path,omitempty"` // Empty disables the audit log
	AuditStorePrompts bool   `json:"audit_store_prompts,omitempty"`

	RateLimitPerSecond float64 `json:"rate_limit_per_second,omitempty"`
	RateLimitBurst     int     `json:"rate_limit_burst,omitempty"`
}

// Flags holds command-line overrides. Empty values leave lower-precedence
// sources untouched.
type Flags struct {
	TokenPath             string
	GoogleCredentialsPath string
	OpenAIModel           string
	DefaultTimezone       string
	Listen                string
	AuditDBPath           string
}

// LoadConfigFromFile loads configuration from a JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile string, flags Flags) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	overrideString(&config.TokenPath, "TOKEN_PATH")
	overrideString(&config.GoogleCredentialsPath, "GOOGLE_CREDENTIALS_PATH")
	overrideString(&config.OpenAIAPIKey, "OPENAI_API_KEY")
	overrideString(&config.OpenAIBaseURL, "OPENAI_BASE_URL")
	overrideString(&config.OpenAIModel, "OPENAI_MODEL")
	overrideString(&config.DefaultTimezone, "DEFAULT_TIMEZONE")
	overrideString(&config.Listen, "LISTEN_ADDR")
	overrideString(&config.AuditDBPath, "AUDIT_DB_PATH")

	if storePrompts := os.Getenv("AUDIT_STORE_PROMPTS"); storePrompts != "" {
		v, err := strconv.ParseBool(storePrompts)
		if err != nil {
			return nil, fmt.Errorf("invalid AUDIT_STORE_PROMPTS value: %w", err)
		}
		config.AuditStorePrompts = v
	}
	if perSecond := os.Getenv("RATE_LIMIT_PER_SECOND"); perSecond != "" {
		v, err := strconv.ParseFloat(perSecond, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_PER_SECOND value: %w", err)
		}
		config.RateLimitPerSecond = v
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		var err error
		if config.RateLimitBurst, err = parseInt(burst); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST value: %w", err)
		}
	}

	// Step 3: Override with command-line flags (highest priority)
	overrideFlag(&config.TokenPath, flags.TokenPath)
	overrideFlag(&config.GoogleCredentialsPath, flags.GoogleCredentialsPath)
	overrideFlag(&config.OpenAIModel, flags.OpenAIModel)
	overrideFlag(&config.DefaultTimezone, flags.DefaultTimezone)
	overrideFlag(&config.Listen, flags.Listen)
	overrideFlag(&config.AuditDBPath, flags.AuditDBPath)

	// Step 4: Apply defaults and validate required fields
	if config.GoogleCredentialsPath == "" {
		return nil, fmt.Errorf("google_credentials_path must be provided via --google-credentials-path flag, GOOGLE_CREDENTIALS_PATH environment variable, or config file")
	}

	if config.TokenPath == "" {
		config.TokenPath = DefaultTokenPath
	}
	if config.OpenAIModel == "" {
		config.OpenAIModel = DefaultOpenAIModel
	}
	if config.Listen == "" {
		config.Listen = DefaultListen
	}

	if config.DefaultTimezone != "" {
		if _, err := time.LoadLocation(config.DefaultTimezone); err != nil {
			return nil, fmt.Errorf("invalid default_timezone %q: %w", config.DefaultTimezone, err)
		}
	}

	if config.RateLimitPerSecond < 0 || config.RateLimitBurst < 0 {
		return nil, fmt.Errorf("rate_limit_per_second and rate_limit_burst must not be negative")
	}
	if config.RateLimitPerSecond == 0 {
		config.RateLimitPerSecond = DefaultRateLimitPerSecond
	}
	if config.RateLimitBurst == 0 {
		config.RateLimitBurst = DefaultRateLimitBurst
	}

	return &config, nil
}

// RequireOpenAI reports an error when no completion-service key is configured.
func (c *Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("openai_api_key must be provided via OPENAI_API_KEY environment variable or config file")
	}
	return nil
}

func overrideString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func overrideFlag(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

// parseInt parses a string to an integer.
func parseInt(s string) (int, error) {
	var result int
	_, err := fmt.Sscanf(s, "%d", &result)
	return result, err
}
