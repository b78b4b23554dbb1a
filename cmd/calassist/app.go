package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/beekhof/calendar-assistant/internal/assistant"
	"github.com/beekhof/calendar-assistant/internal/audit"
	"github.com/beekhof/calendar-assistant/internal/auth"
	"github.com/beekhof/calendar-assistant/internal/calendar"
	"github.com/beekhof/calendar-assistant/internal/config"
	"github.com/beekhof/calendar-assistant/internal/interpreter"
	"github.com/beekhof/calendar-assistant/internal/llm"
)

// app holds the components shared by the prompt, serve and calendars commands.
type app struct {
	session *auth.Session
	gateway *calendar.Gateway
	service *assistant.Service
	audit   *audit.Store
}

func googleOAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load Google credentials: %w", err)
	}
	return auth.NewOAuthConfig(clientID, clientSecret), nil
}

// newApp wires the gateway and, when withAssistant is set, the completion
// client, interpreter and audit log.
func newApp(ctx context.Context, cfg *config.Config, withAssistant bool) (*app, error) {
	oauthConfig, err := googleOAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		session: auth.NewSession(auth.NewFileTokenStore(cfg.TokenPath)),
		gateway: calendar.NewGateway(oauthConfig),
	}
	if !withAssistant {
		return a, nil
	}

	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	completer, err := llm.NewCompleter(&llm.Config{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	var opts []assistant.Option
	if cfg.AuditDBPath != "" {
		a.audit, err = audit.Open(ctx, cfg.AuditDBPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, assistant.WithRecorder(a.audit, cfg.AuditStorePrompts))
		slog.Debug("audit log enabled", "path", cfg.AuditDBPath)
	}

	a.service = assistant.NewService(interpreter.New(completer), a.gateway, opts...)
	return a, nil
}

func (a *app) Close() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			slog.Warn("failed to close audit database", "error", err)
		}
	}
}
