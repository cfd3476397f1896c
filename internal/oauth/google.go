// Package oauth obtains a Google access token for sign-in using the
// installed-app loopback flow with PKCE.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	ErrNotConfigured = errors.New("google sign-in is not configured")
	ErrStateMismatch = errors.New("oauth state mismatch")
)

// DefaultScopes are enough for the backend to read the user's email and name.
var DefaultScopes = []string{"openid", "email", "profile"}

// Config describes the OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Endpoint defaults to Google's.
	Endpoint oauth2.Endpoint
	// OpenURL shows the consent page to the user.
	OpenURL func(url string) error
	Logger  *slog.Logger
}

// GoogleFlow runs one sign-in at a time on a loopback redirect.
type GoogleFlow struct {
	cfg Config
}

func NewGoogleFlow(cfg Config) *GoogleFlow {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GoogleFlow{cfg: cfg}
}

type callbackResult struct {
	code string
	err  error
}

// AccessToken opens the consent page, waits for the redirect and exchanges
// the code for an access token.
func (f *GoogleFlow) AccessToken(ctx context.Context) (string, error) {
	if f.cfg.ClientID == "" {
		return "", ErrNotConfigured
	}
	if f.cfg.OpenURL == nil {
		return "", errors.New("no way to open the consent page")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for oauth redirect: %w", err)
	}

	client := &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint:     f.cfg.Endpoint,
		Scopes:       f.cfg.Scopes,
		RedirectURL:  fmt.Sprintf("http://%s/callback", listener.Addr().String()),
	}
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		result := readCallback(r, state)
		select {
		case results <- result:
		default:
		}
		if result.err != nil {
			http.Error(w, result.err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Signed in. You can close this window.")
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.cfg.Logger.Warn("oauth redirect server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := client.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	if err := f.cfg.OpenURL(authURL); err != nil {
		return "", fmt.Errorf("open consent page: %w", err)
	}
	f.cfg.Logger.Info("waiting for google sign-in", "redirect", client.RedirectURL)

	var result callbackResult
	select {
	case result = <-results:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if result.err != nil {
		return "", result.err
	}

	token, err := client.Exchange(ctx, result.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("exchange oauth code: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("oauth response has no access token")
	}
	return token.AccessToken, nil
}

func readCallback(r *http.Request, state string) callbackResult {
	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		return callbackResult{err: fmt.Errorf("google sign-in refused: %s", reason)}
	}
	if query.Get("state") != state {
		return callbackResult{err: ErrStateMismatch}
	}
	code := query.Get("code")
	if code == "" {
		return callbackResult{err: errors.New("oauth redirect has no code")}
	}
	return callbackResult{code: code}
}
