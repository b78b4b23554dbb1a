package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestFileTokenStore_SaveLoad(t *testing.T) {
	// Create a temporary directory for the token file
	tempDir := t.TempDir()
	tokenPath := filepath.Join(tempDir, "token.json")

	store := NewFileTokenStore(tokenPath)

	expiry := time.Now().Add(1 * time.Hour)
	token := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		Expiry:       expiry,
		TokenType:    "Bearer",
	}

	if err := store.SaveToken(token); err != nil {
		t.Fatalf("SaveToken() returned an error: %v", err)
	}

	info, err := os.Stat(tokenPath)
	if err != nil {
		t.Fatalf("token file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected token file mode 0600, got %o", perm)
	}

	loadedToken, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() returned an error: %v", err)
	}

	if loadedToken == nil {
		t.Fatal("LoadToken() returned nil token")
	}

	if loadedToken.AccessToken != token.AccessToken {
		t.Errorf("Expected AccessToken to be '%s', got '%s'", token.AccessToken, loadedToken.AccessToken)
	}

	if loadedToken.RefreshToken != token.RefreshToken {
		t.Errorf("Expected RefreshToken to be '%s', got '%s'", token.RefreshToken, loadedToken.RefreshToken)
	}

	if !loadedToken.Expiry.Equal(token.Expiry) {
		t.Errorf("Expected Expiry to be %v, got %v", token.Expiry, loadedToken.Expiry)
	}
}

func TestFileTokenStore_LoadEmpty(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "nonexistent.json")

	store := NewFileTokenStore(tokenPath)

	token, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() should not return an error for non-existent file, got: %v", err)
	}

	if token != nil {
		t.Errorf("LoadToken() should return nil for non-existent file, got: %v", token)
	}
}

func TestFileTokenStore_LoadCorrupt(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(tokenPath, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileTokenStore(tokenPath).LoadToken(); err == nil {
		t.Error("LoadToken() should return an error for a corrupt file")
	}
}

func TestSession_SavesOnlyChangedTokens(t *testing.T) {
	mockStore := &mockTokenStore{token: &oauth2.Token{AccessToken: "old", RefreshToken: "r"}}
	session := NewSession(mockStore)

	// Unchanged token: nothing saved
	err := session.Use(func(tok *oauth2.Token) *oauth2.Token {
		if tok.AccessToken != "old" {
			t.Errorf("Expected stored token, got %q", tok.AccessToken)
		}
		return tok
	})
	if err != nil {
		t.Fatalf("Use() returned an error: %v", err)
	}
	if len(mockStore.savedTokens) != 0 {
		t.Errorf("Expected no save for an unchanged token, got %d", len(mockStore.savedTokens))
	}

	// Refreshed token: saved
	err = session.Use(func(tok *oauth2.Token) *oauth2.Token {
		return &oauth2.Token{AccessToken: "new", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	})
	if err != nil {
		t.Fatalf("Use() returned an error: %v", err)
	}
	if len(mockStore.savedTokens) != 1 || mockStore.token.AccessToken != "new" {
		t.Errorf("Expected the refreshed token to be saved, got %+v", mockStore.savedTokens)
	}

	// Nil result: nothing saved
	err = session.Use(func(*oauth2.Token) *oauth2.Token { return nil })
	if err != nil {
		t.Fatalf("Use() returned an error: %v", err)
	}
	if len(mockStore.savedTokens) != 1 {
		t.Errorf("Expected no further saves, got %d", len(mockStore.savedTokens))
	}
}
