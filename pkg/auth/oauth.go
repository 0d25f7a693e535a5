package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"
)

const (
	// ClientSecretsFile is the downloaded Google API credentials file, either
	// an OAuth desktop client or a service account key. It lives in the
	// config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile caches the user's OAuth token (access_token + refresh_token).
	TokenFile = "token.json"

	// LocalhostAuthPort is the port the local web server listens on to
	// capture the OAuth redirect.
	LocalhostAuthPort = "6789"

	xdgAppName = "tasksheet"
)

// Scopes covers reading and rewriting the ledger spreadsheet, finding it by
// name, and sending alert mail.
var Scopes = []string{
	sheets.SpreadsheetsScope,
	drive.DriveMetadataReadonlyScope,
	gmail.GmailSendScope,
}

// GetConfig creates an oauth2.Config from the client secrets file and specified scopes.
func GetConfig(scopes []string) (*oauth2.Config, error) {
	b, err := readSecrets()
	if err != nil {
		return nil, err
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	parsedURL, parseErr := url.Parse(config.RedirectURL)
	if parseErr != nil {
		log.Warnf("could not parse RedirectURL '%s': %v. Using it as is.", config.RedirectURL, parseErr)
	} else if parsedURL.Hostname() == "localhost" || parsedURL.Hostname() == "127.0.0.1" {
		if parsedURL.Port() != LocalhostAuthPort {
			// The Cloud Console redirect URI must match the port net.Listen uses.
			parsedURL.Host = fmt.Sprintf("%s:%s", parsedURL.Hostname(), LocalhostAuthPort)
			config.RedirectURL = parsedURL.String()
			log.Debugf("forcing localhost RedirectURL to %s", config.RedirectURL)
		}
	} else if config.RedirectURL == "urn:ietf:wg:oauth:2.0:oob" {
		config.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		log.Printf("Overriding 'urn:ietf:wg:oauth:2.0:oob' RedirectURL to: %s", config.RedirectURL)
	} else {
		log.Warnf("configured RedirectURL is not a localhost callback or OOB: %s", config.RedirectURL)
	}

	return config, nil
}

func readSecrets() ([]byte, error) {
	xdgConfigBase, err := GetXdgHome()
	if err != nil {
		return nil, err
	}
	clientSecretsFile := filepath.Join(xdgConfigBase, ClientSecretsFile)
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", clientSecretsFile, err)
	}
	return b, nil
}

// isServiceAccount reports whether the credentials JSON is a service account key.
func isServiceAccount(b []byte) bool {
	var key struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(b, &key) == nil && key.Type == "service_account"
}

// GetClient retrieves an authenticated *http.Client. Service account keys are
// used directly; for desktop clients it loads a cached token, refreshing it
// when expired, or starts the web authorization flow when none exists.
func GetClient(ctx context.Context, scopes []string) (*http.Client, error) {
	b, err := readSecrets()
	if err != nil {
		return nil, err
	}
	if isServiceAccount(b) {
		jwt, err := google.JWTConfigFromJSON(b, scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		return jwt.Client(ctx), nil
	}

	config, err := GetConfig(scopes)
	if err != nil {
		return nil, err
	}

	xdgConfigBase, err := GetXdgHome()
	if err != nil {
		return nil, err
	}

	tokenFile := filepath.Join(xdgConfigBase, TokenFile)
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		log.Printf("No existing token found at %s. Initiating web authorization flow...", tokenFile)
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}

	// The returned client refreshes the access token on its own; persist the
	// refreshed token so the next run starts from it.
	src := config.TokenSource(ctx, tok)
	if currentTok, err := src.Token(); err != nil {
		log.Warnf("could not get current token from source: %v", err)
	} else if currentTok.AccessToken != tok.AccessToken || currentTok.RefreshToken != tok.RefreshToken {
		log.Debugf("token was refreshed, saving to %s", tokenFile)
		if err := saveToken(tokenFile, currentTok); err != nil {
			log.Warnf("%v", err)
		}
		tok = currentTok
	}

	return config.Client(ctx, tok), nil
}

// authTimeout bounds how long the browser flow waits for the redirect.
const authTimeout = 5 * time.Minute

// getTokenFromWeb prints the consent URL and waits on the loopback port for
// Google's redirect.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("listen on port %s: %w", LocalhostAuthPort, err)
	}
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	return exchangeRedirect(ctx, config, ln, func(u string) {
		fmt.Printf("Open this URL in a browser to let tasksheet use your Google account:\n%s\n", u)
	})
}

// redirectResult is what the loopback handler hands back to the flow.
type redirectResult struct {
	code string
	err  error
}

// exchangeRedirect serves one authorization redirect on ln, checks its state
// against a fresh random value, and trades the code for a token. ln is
// closed on return.
func exchangeRedirect(ctx context.Context, config *oauth2.Config, ln net.Listener, show func(authURL string)) (*oauth2.Token, error) {
	state, err := newState()
	if err != nil {
		return nil, err
	}

	results := make(chan redirectResult, 1)
	deliver := func(r redirectResult) {
		select {
		case results <- r:
		default:
		}
	}
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch {
			case q.Get("error") != "":
				http.Error(w, "Authorization was denied.", http.StatusForbidden)
				deliver(redirectResult{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
			case q.Get("state") != state:
				http.Error(w, "Unexpected state parameter.", http.StatusBadRequest)
			case q.Get("code") == "":
				http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			default:
				fmt.Fprintln(w, "tasksheet is authorized. This tab can be closed.")
				deliver(redirectResult{code: q.Get("code")})
			}
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(redirectResult{err: fmt.Errorf("redirect listener: %w", err)})
		}
	}()
	defer srv.Close()

	show(config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")))
	log.Debugf("waiting for the authorization redirect on %s", ln.Addr())

	var res redirectResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
	if res.err != nil {
		return nil, res.err
	}
	tok, err := config.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// tokenFromFile reads an oauth2.Token from a JSON file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

// saveToken saves an oauth2.Token to a JSON file readable by the owner only.
func saveToken(path string, token *oauth2.Token) error {
	log.Printf("Saving authentication token to: %s", path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// Reauthenticate discards any cached token and runs the authorization flow again.
func Reauthenticate(ctx context.Context) error {
	xdgConfigBase, err := GetXdgHome()
	if err != nil {
		return fmt.Errorf("could not find path to configuration file: %w", err)
	}

	tokenFile := filepath.Join(xdgConfigBase, TokenFile)
	if _, err := os.Stat(tokenFile); err == nil {
		log.Printf("Removing existing token file at '%s'", tokenFile)
		if err := os.Remove(tokenFile); err != nil {
			return fmt.Errorf("could not delete token file '%s': %w. Please delete it manually", tokenFile, err)
		}
	} else if !os.IsNotExist(err) {
		log.Warnf("could not check token file '%s': %v", tokenFile, err)
	}

	_, err = GetClient(ctx, Scopes)
	return err
}

func GetXdgHome() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName), nil
}
