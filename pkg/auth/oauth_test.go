package auth

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestIsServiceAccount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"service account", `{"type":"service_account","client_email":"bot@example.iam.gserviceaccount.com"}`, true},
		{"desktop client", `{"installed":{"client_id":"abc","redirect_uris":["http://localhost"]}}`, false},
		{"garbage", `not json`, false},
	}
	for _, tt := range tests {
		if got := isServiceAccount([]byte(tt.in)); got != tt.want {
			t.Errorf("%s: isServiceAccount() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", TokenFile)
	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)}

	if err := saveToken(path, tok); err != nil {
		t.Fatalf("saveToken() failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("token mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := tokenFromFile(path)
	if err != nil {
		t.Fatalf("tokenFromFile() failed: %v", err)
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" || !got.Expiry.Equal(tok.Expiry) {
		t.Errorf("token mismatch: %+v", got)
	}
}

func TestGetConfigForcesLocalhostPort(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", xdgAppName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	secrets := `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost:1234"]}}`
	if err := os.WriteFile(filepath.Join(dir, ClientSecretsFile), []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := GetConfig(Scopes)
	if err != nil {
		t.Fatalf("GetConfig() failed: %v", err)
	}
	if !strings.Contains(cfg.RedirectURL, ":"+LocalhostAuthPort) {
		t.Errorf("RedirectURL = %q, want port %s", cfg.RedirectURL, LocalhostAuthPort)
	}
}

func newLoopback(t *testing.T) (net.Listener, *oauth2.Config) {
	t.Helper()
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokens.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://" + ln.Addr().String(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokens.URL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return ln, cfg
}

// redirect plays the browser: it hits the loopback listener with query.
func redirect(t *testing.T, ln net.Listener, query url.Values) int {
	t.Helper()
	resp, err := http.Get("http://" + ln.Addr().String() + "/?" + query.Encode())
	if err != nil {
		t.Fatalf("redirect: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestExchangeRedirectChecksState(t *testing.T) {
	ln, cfg := newLoopback(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tok, err := exchangeRedirect(ctx, cfg, ln, func(authURL string) {
		u, err := url.Parse(authURL)
		if err != nil {
			t.Errorf("bad auth URL %q: %v", authURL, err)
			return
		}
		q := u.Query()
		if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
			t.Errorf("auth URL lacks offline consent: %s", authURL)
		}
		state := q.Get("state")
		if len(state) != 32 {
			t.Errorf("state = %q, want 32 hex characters", state)
		}
		if code := redirect(t, ln, url.Values{"state": {"forged"}, "code": {"bad-code"}}); code != http.StatusBadRequest {
			t.Errorf("forged state: status %d, want 400", code)
		}
		if code := redirect(t, ln, url.Values{"state": {state}, "code": {"good-code"}}); code != http.StatusOK {
			t.Errorf("valid redirect: status %d, want 200", code)
		}
	})
	if err != nil {
		t.Fatalf("exchangeRedirect failed: %v", err)
	}
	if tok.AccessToken != "access" || tok.RefreshToken != "refresh" {
		t.Errorf("token = %+v", tok)
	}
}

func TestExchangeRedirectDenied(t *testing.T) {
	ln, cfg := newLoopback(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := exchangeRedirect(ctx, cfg, ln, func(string) {
		redirect(t, ln, url.Values{"error": {"access_denied"}})
	})
	if err == nil || !strings.Contains(err.Error(), "access_denied") {
		t.Fatalf("expected a denial error, got %v", err)
	}
}

func TestExchangeRedirectHonorsContext(t *testing.T) {
	ln, cfg := newLoopback(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := exchangeRedirect(ctx, cfg, ln, func(string) {}); err == nil {
		t.Fatal("expected a timeout error")
	}
}
