// Package auth owns the OAuth2 Authorization-Code flow and the token
// lifecycle: acquisition, persistence, lazy refresh, and revocation.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/forcegrid/sfschema/internal/config"
	"github.com/forcegrid/sfschema/internal/output"
)

const (
	authorizePath = "/services/oauth2/authorize"
	tokenPath     = "/services/oauth2/token"
	revokePath    = "/services/oauth2/revoke"

	// Scope requested during login. refresh_token is required for the
	// lazy-refresh lifecycle.
	defaultScope = "api refresh_token"

	callbackAddr = "127.0.0.1:8787"
	redirectURI  = "http://" + callbackAddr + "/callback"

	// Refresh this many seconds before the recorded expiry.
	expiryBuffer = 300
)

// Session handles OAuth authentication for one (user, environment) principal.
type Session struct {
	cfg        *config.Config
	store      *Store
	httpClient *http.Client

	// loginBase is the authorization-server base URL. It defaults to the
	// environment's fixed login host; tests point it at a fake provider.
	loginBase string

	now func() time.Time
	mu  sync.Mutex
}

// NewSession creates an auth session for the configured environment.
func NewSession(cfg *config.Config, httpClient *http.Client) *Session {
	return &Session{
		cfg:        cfg,
		store:      NewStore(config.GlobalConfigDir()),
		httpClient: httpClient,
		loginBase:  cfg.Environment.LoginURL(),
		now:        time.Now,
	}
}

// scopeKey is the token-store key for this principal.
func (s *Session) scopeKey() string {
	return string(s.cfg.Environment)
}

// Store returns the underlying token store.
func (s *Session) Store() *Store {
	return s.store
}

// AuthorizationURL builds the provider's authorize endpoint URL.
// Fails with AuthFailed when client credentials are unconfigured.
func (s *Session) AuthorizationURL(state string) (string, error) {
	if s.cfg.ClientID == "" {
		return "", output.ErrAuthFailed("OAuth client is not configured",
			"set client_id via: sfschema config set client_id <id>")
	}

	u, err := url.Parse(s.loginBase + authorizePath)
	if err != nil {
		return "", output.ErrAuthFailed("Invalid authorization endpoint", err.Error())
	}

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", s.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", defaultScope)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// HandleAuthorizationCallback exchanges an authorization code for a token
// and persists it. Returns (false, nil) when the provider denied the request
// or returned no code — that is a user decision, not an error.
func (s *Session) HandleAuthorizationCallback(ctx context.Context, code string) (bool, error) {
	if code == "" {
		return false, nil
	}

	tok, err := s.exchangeCode(ctx, code)
	if err != nil {
		return false, err
	}

	if err := s.store.Save(s.scopeKey(), tok); err != nil {
		return false, output.ErrAuthFailed("Cannot persist token", err.Error())
	}
	return true, nil
}

// HasValidToken reports whether a token is present. Expiry is handled lazily
// at use time, not here.
func (s *Session) HasValidToken() bool {
	tok, err := s.store.Load(s.scopeKey())
	return err == nil && tok.AccessToken != ""
}

// AccessToken returns a usable access token, transparently refreshing via
// the refresh token when the current one has expired.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.store.Load(s.scopeKey())
	if err != nil {
		return "", output.ErrAuthRequired("Not authenticated")
	}

	if tok.ExpiresAt > 0 && s.now().Unix() >= tok.ExpiresAt-expiryBuffer {
		if err := s.refreshLocked(ctx, tok); err != nil {
			return "", err
		}
		tok, err = s.store.Load(s.scopeKey())
		if err != nil {
			return "", output.ErrAuthRequired("Not authenticated")
		}
	}

	return tok.AccessToken, nil
}

// InstanceBaseURL returns the API host recorded by the token endpoint.
func (s *Session) InstanceBaseURL() (string, error) {
	tok, err := s.store.Load(s.scopeKey())
	if err != nil || tok.InstanceURL == "" {
		return "", output.ErrAuthExpired("No API instance recorded", "authenticate to obtain an instance URL")
	}
	return strings.TrimSuffix(tok.InstanceURL, "/"), nil
}

// CurrentToken returns the stored token, if any.
func (s *Session) CurrentToken() (*Token, error) {
	tok, err := s.store.Load(s.scopeKey())
	if err != nil {
		return nil, output.ErrAuthRequired("Not authenticated")
	}
	return tok, nil
}

// Refresh forces a token refresh.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.store.Load(s.scopeKey())
	if err != nil {
		return output.ErrAuthRequired("Not authenticated")
	}

	return s.refreshLocked(ctx, tok)
}

// refreshLocked performs the refresh-token exchange. The caller holds s.mu;
// the cross-process flock serializes against other CLI invocations.
func (s *Session) refreshLocked(ctx context.Context, tok *Token) error {
	lock, err := acquireRefreshLock(ctx, s.cfg.CacheDir, s.scopeKey())
	if err != nil {
		return err
	}
	defer lock.release()

	// Another invocation may have refreshed while we waited for the lock.
	// Re-read the durable store past the memo: if the token changed, the
	// exchange already happened, and redeeming our refresh token again would
	// revoke the fresh one.
	if fresh, err := s.store.Reload(s.scopeKey()); err == nil {
		if fresh.AccessToken != tok.AccessToken {
			return nil
		}
		tok = fresh
	}

	if tok.RefreshToken == "" {
		s.invalidateQuietly()
		return output.ErrAuthExpired("Session expired", "no refresh token stored")
	}

	// Use the token endpoint recorded at exchange time; it survives login
	// host changes.
	endpoint := tok.TokenEndpoint
	if endpoint == "" {
		endpoint = s.loginBase + tokenPath
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", tok.RefreshToken)
	data.Set("client_id", s.cfg.ClientID)
	if s.cfg.ClientSecret != "" {
		data.Set("client_secret", s.cfg.ClientSecret)
	}

	resp, err := s.postForm(ctx, endpoint, data)
	if err != nil {
		return output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		// The refresh token is revoked or expired. Drop the dead token so
		// the caller is never left with a dead-but-present one.
		s.invalidateQuietly()
		return output.ErrAuthExpired("Session expired", fmt.Sprintf("token refresh failed: %s", string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return output.ErrAuthExpired("Session expired", fmt.Sprintf("malformed token response: %v", err))
	}

	tok.AccessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		tok.RefreshToken = tr.RefreshToken
	}
	if tr.InstanceURL != "" {
		tok.InstanceURL = tr.InstanceURL
	}
	if tr.TokenType != "" {
		tok.TokenType = tr.TokenType
	}
	tok.ExpiresAt = tr.expiresAt(s.now())

	if err := s.store.Save(s.scopeKey(), tok); err != nil {
		return output.ErrAuthFailed("Cannot persist refreshed token", err.Error())
	}
	return nil
}

// Invalidate deletes the stored token. Best-effort: a storage failure is
// logged and never blocks logout.
func (s *Session) Invalidate() {
	if err := s.store.Delete(s.scopeKey()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not remove stored token: %v\n", err)
	}
}

func (s *Session) invalidateQuietly() {
	_ = s.store.Delete(s.scopeKey())
}

// LoginOptions configures the login flow.
type LoginOptions struct {
	NoBrowser bool // If true, don't auto-open browser, just print URL
}

// Login runs the full Authorization-Code flow: loopback callback server,
// browser handoff, state check, code exchange, persistence.
func (s *Session) Login(ctx context.Context, opts LoginOptions) error {
	state, err := generateState()
	if err != nil {
		return output.ErrAuthFailed("Cannot generate state", err.Error())
	}

	authURL, err := s.AuthorizationURL(state)
	if err != nil {
		return err
	}

	code, err := s.waitForCallback(ctx, state, authURL, opts.NoBrowser)
	if err != nil {
		return err
	}

	ok, err := s.HandleAuthorizationCallback(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return output.ErrAuthFailed("Authorization was denied", "")
	}
	return nil
}

func (s *Session) waitForCallback(ctx context.Context, expectedState, authURL string, noBrowser bool) (string, error) {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", callbackAddr)
	if err != nil {
		return "", output.ErrAuthFailed("Cannot start callback server", err.Error())
	}
	defer func() { _ = listener.Close() }()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := r.URL.Query().Get("state")
			code := r.URL.Query().Get("code")
			errParam := r.URL.Query().Get("error")

			if errParam != "" {
				errCh <- output.ErrAuthFailed("Authorization was denied", errParam)
				fmt.Fprint(w, "<html><body><h1>Authentication failed</h1><p>You can close this window.</p></body></html>")
				return
			}

			if state != expectedState {
				errCh <- output.ErrAuthFailed("State mismatch", "CSRF protection failed")
				fmt.Fprint(w, "<html><body><h1>Authentication failed</h1><p>State mismatch.</p></body></html>")
				return
			}

			codeCh <- code
			fmt.Fprint(w, "<html><body><h1>Authentication successful!</h1><p>You can close this window.</p></body></html>")
		}),
	}

	go server.Serve(listener)

	if !noBrowser {
		if err := openBrowser(authURL); err != nil {
			fmt.Printf("\nCouldn't open browser automatically.\nOpen this URL in your browser:\n%s\n\nWaiting for authentication...\n", authURL)
		} else {
			fmt.Printf("\nOpening browser for authentication...\nIf the browser doesn't open, visit: %s\n\nWaiting for authentication...\n", authURL)
		}
	} else {
		fmt.Printf("\nOpen this URL in your browser:\n%s\n\nWaiting for authentication...\n", authURL)
	}

	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", output.ErrAuthFailed("Authentication cancelled", ctx.Err().Error())
	case <-time.After(5 * time.Minute):
		return "", output.ErrAuthFailed("Authentication timeout", "no callback within 5 minutes")
	}
}

func (s *Session) exchangeCode(ctx context.Context, code string) (*Token, error) {
	if s.cfg.ClientID == "" {
		return nil, output.ErrAuthFailed("OAuth client is not configured",
			"set client_id via: sfschema config set client_id <id>")
	}

	endpoint := s.loginBase + tokenPath

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", s.cfg.ClientID)
	if s.cfg.ClientSecret != "" {
		data.Set("client_secret", s.cfg.ClientSecret)
	}

	resp, err := s.postForm(ctx, endpoint, data)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, output.ErrAuthFailed("Token exchange failed", string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, output.ErrAuthFailed("Malformed token response", err.Error())
	}
	if tr.AccessToken == "" || tr.InstanceURL == "" {
		return nil, output.ErrAuthFailed("Incomplete token response", "missing access_token or instance_url")
	}

	return &Token{
		AccessToken:   tr.AccessToken,
		RefreshToken:  tr.RefreshToken,
		ExpiresAt:     tr.expiresAt(s.now()),
		InstanceURL:   tr.InstanceURL,
		TokenType:     tr.TokenType,
		TokenEndpoint: endpoint,
		Scope:         tr.Scope,
	}, nil
}

func (s *Session) postForm(ctx context.Context, endpoint string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.httpClient.Do(req)
}

// tokenResponse is the token endpoint's wire shape. expires_in is optional;
// when the provider omits it, expiry is unknown and staleness is handled by
// the executor's 401 path.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	InstanceURL  string `json:"instance_url"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (tr tokenResponse) expiresAt(now time.Time) int64 {
	if tr.ExpiresIn <= 0 {
		return 0
	}
	return now.Unix() + tr.ExpiresIn
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return exec.Command(cmd, args...).Start() //nolint:gosec,noctx // G204: cmd is hardcoded per-platform; fire-and-forget
}
