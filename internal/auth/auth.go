package auth

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

// DefaultRedirectURL is the callback address registered for desktop clients.
const DefaultRedirectURL = "http://127.0.0.1:8080"

// authorizationTimeout bounds how long the interactive flow waits for the browser.
const authorizationTimeout = 5 * time.Minute

// TokenStore is an interface for saving and loading OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// NewOAuthConfig returns the Google OAuth configuration for calendar access.
func NewOAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  DefaultRedirectURL, // Will be updated dynamically by auth flow
		Scopes: []string{
			calendar.CalendarScope,
			calendar.CalendarEventsScope,
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}
}

// callbackAddr is where the interactive flow listens for the OAuth callback.
const callbackAddr = "127.0.0.1:8080"

// startLocalServer starts a local HTTP server on addr to receive the OAuth callback.
// Returns the redirect URL, a channel for the authorization code, and a channel for errors.
// Falls back to a random port if addr is unavailable.
// Callbacks whose state does not match are rejected.
func startLocalServer(addr, state string) (string, <-chan string, <-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		// Fall back to random port if addr is in use
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case query.Get("code") != "":
			fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
			codeChan <- query.Get("code")
		case query.Get("error") != "":
			errMsg := query.Get("error")
			errorChan <- fmt.Errorf("authorization error: %s", errMsg)
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", errMsg)
		default:
			fmt.Fprintf(w, "<html><body><h1>No authorization code received</h1></body></html>")
			errorChan <- fmt.Errorf("no authorization code received")
		}
		go func() {
			time.Sleep(1 * time.Second)
			server.Shutdown(context.Background())
		}()
	})
	server.Handler = mux

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errorChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	return redirectURL, codeChan, errorChan, nil
}

// LoadOrAuthorize returns the stored token, running the interactive
// browser flow when there is none.
func LoadOrAuthorize(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, out io.Writer) (*oauth2.Token, error) {
	// Attempt to load an existing token
	token, err := tokenStore.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token != nil {
		return token, nil
	}
	return Authorize(ctx, oauthConfig, tokenStore, out)
}

// Authorize runs the authorization-code flow with a local callback server,
// requesting offline access so that a refresh token is issued. The token is
// saved to tokenStore.
func Authorize(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, out io.Writer) (*oauth2.Token, error) {
	state := uuid.NewString()

	// Start local server to receive callback
	redirectURL, codeChan, errorChan, err := startLocalServer(callbackAddr, state)
	if err != nil {
		return nil, err
	}

	// Update the redirect URL in the config
	oauthConfig.RedirectURL = redirectURL

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintf(out, "Starting local server on %s\n", redirectURL)
	if redirectURL != DefaultRedirectURL {
		fmt.Fprintf(out, "Note: Port 8080 was unavailable. Make sure to add %s to your authorized redirect URIs in Google Cloud Console.\n", redirectURL)
	}
	fmt.Fprintln(out, "\nPlease visit the following URL to authorize the application:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "\nWaiting for authorization...")

	// Wait for the authorization code
	var code string
	select {
	case code = <-codeChan:
	case err := <-errorChan:
		return nil, fmt.Errorf("failed to receive authorization code: %w", err)
	case <-time.After(authorizationTimeout):
		return nil, fmt.Errorf("authorization timeout: no response received within %s", authorizationTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return exchange(ctx, oauthConfig, tokenStore, code)
}

// AuthorizeWithReader runs the flow without a callback server: the user
// pastes the authorization code, which is read from reader.
func AuthorizeWithReader(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, reader io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := oauthConfig.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintln(out, "Please visit the following URL to authorize the application:")
	fmt.Fprintln(out, authURL)
	fmt.Fprint(out, "Enter the authorization code: ")

	// Read the auth code from the provided reader
	var code string
	if _, err := fmt.Fscanln(reader, &code); err != nil {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	return exchange(ctx, oauthConfig, tokenStore, code)
}

func exchange(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("no authorization code received")
	}

	// Exchange the code for a token
	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("authorization did not return a refresh token; revoke the app's access and try again")
	}

	// Save the new token
	if err := tokenStore.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	return token, nil
}
