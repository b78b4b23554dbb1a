package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/beekhof/calendar-assistant/internal/config"
)

var (
	cfgFile  string
	verbose  bool
	cfgFlags config.Flags
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "calassist",
	Short: "Manage a Google Calendar with plain-language prompts",
	Long: `Calendar Assistant

Turns prompts such as "dentist next Monday at 2pm" or "cancel my standup
tomorrow" into Google Calendar operations. A completion service classifies
each prompt as a create, view or delete request and resolves its dates in
your timezone.

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (TOKEN_PATH, GOOGLE_CREDENTIALS_PATH, OPENAI_API_KEY,
       OPENAI_BASE_URL, OPENAI_MODEL, DEFAULT_TIMEZONE, LISTEN_ADDR, AUDIT_DB_PATH)
    3. Config file (--config)
    4. Defaults

CONFIG FILE:
    {
      "token_path": "/path/to/token.json",
      "google_credentials_path": "/path/to/credentials.json",
      "openai_api_key": "sk-...",
      "openai_model": "gpt-4o-mini",
      "default_timezone": "America/New_York",
      "listen": "127.0.0.1:8081",
      "audit_db_path": "/path/to/audit.db",
      "rate_limit_per_second": 1,
      "rate_limit_burst": 5
    }

    The Google credentials JSON file should be in the format downloaded from
    Google Cloud Console (with "installed" or "web" section). Run
    "calassist login" once to authorize access before using the other commands.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (show DEBUG logs)")
	rootCmd.PersistentFlags().StringVar(&cfgFlags.TokenPath, "token-path", "", "Path to store the OAuth token (overrides config file and TOKEN_PATH env var)")
	rootCmd.PersistentFlags().StringVar(&cfgFlags.GoogleCredentialsPath, "google-credentials-path", "", "Path to Google OAuth credentials JSON file (overrides config file and GOOGLE_CREDENTIALS_PATH env var)")
	rootCmd.PersistentFlags().StringVar(&cfgFlags.OpenAIModel, "model", "", "Completion model (overrides config file and OPENAI_MODEL env var)")
	rootCmd.PersistentFlags().StringVar(&cfgFlags.DefaultTimezone, "default-timezone", "", "IANA timezone used when a prompt gives none (overrides config file and DEFAULT_TIMEZONE env var)")
	rootCmd.PersistentFlags().StringVar(&cfgFlags.AuditDBPath, "audit-db", "", "Path to the audit database (overrides config file and AUDIT_DB_PATH env var)")

	rootCmd.AddCommand(loginCmd, promptCmd, serveCmd, calendarsCmd, historyCmd)
}

// setup installs the logger and loads the configuration for every subcommand.
func setup(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	cfg, err = config.LoadConfig(cfgFile, cfgFlags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	slog.Debug("configuration loaded", "token_path", cfg.TokenPath, "model", cfg.OpenAIModel, "audit", cfg.AuditDBPath != "")
	return nil
}
