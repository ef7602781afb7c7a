package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/saturnines/ants-tap/pkg/errors"
)

// DefaultTokenTTL is assumed when the token endpoint gives no lifetime and
// the token carries no usable exp claim.
const DefaultTokenTTL = time.Hour

// exchangeTimeout bounds a shared token exchange, which outlives the caller
// that started it.
const exchangeTimeout = 30 * time.Second

// HTTPDoer can perform HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenResponse represents the response from the token endpoint
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenProvider owns the bearer token lifecycle: it exchanges the account
// credentials for a token with the password grant, caches it, and refreshes
// it once it expires. Concurrent callers share a single exchange.
type TokenProvider struct {
	tokenURL      string
	username      string
	password      string
	doer          HTTPDoer
	store         TokenStore
	refreshBefore time.Duration
	defaultTTL    time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu        sync.Mutex
	token     Token
	margin    time.Duration
	skipStore bool
	flight    singleflight.Group
}

// ProviderOption configures a TokenProvider
type ProviderOption func(*TokenProvider)

// WithHTTPDoer sets the client used for the token exchange.
func WithHTTPDoer(doer HTTPDoer) ProviderOption {
	return func(p *TokenProvider) { p.doer = doer }
}

// WithTokenStore persists tokens so later runs can reuse them.
func WithTokenStore(store TokenStore) ProviderOption {
	return func(p *TokenProvider) { p.store = store }
}

// WithRefreshBefore treats tokens as expired this long before their expiry.
func WithRefreshBefore(d time.Duration) ProviderOption {
	return func(p *TokenProvider) {
		if d > 0 {
			p.refreshBefore = d
		}
	}
}

// WithDefaultTTL overrides DefaultTokenTTL.
func WithDefaultTTL(d time.Duration) ProviderOption {
	return func(p *TokenProvider) {
		if d > 0 {
			p.defaultTTL = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *TokenProvider) { p.now = now }
}

// WithLogger sets the logger for refresh and persistence events.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *TokenProvider) { p.logger = logger }
}

// NewTokenProvider creates a provider exchanging credentials at {apiURL}/token.
func NewTokenProvider(apiURL, username, password string, opts ...ProviderOption) (*TokenProvider, error) {
	if apiURL == "" || username == "" || password == "" {
		return nil, errors.WrapError(ErrMissingCredentials, errors.ErrConfiguration, "create token provider")
	}

	p := &TokenProvider{
		tokenURL:   strings.TrimRight(apiURL, "/") + "/token",
		username:   username,
		password:   password,
		doer:       &http.Client{Timeout: 30 * time.Second},
		defaultTTL: DefaultTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// GetToken returns a usable bearer token, exchanging credentials when the
// cached token is missing or expired.
func (p *TokenProvider) GetToken(ctx context.Context) (string, error) {
	if tok, ok := p.cached(); ok {
		return tok.Value, nil
	}

	ch := p.flight.DoChan("token", func() (interface{}, error) {
		// Another caller may have refreshed while we queued.
		if tok, ok := p.cached(); ok {
			return tok, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
		defer cancel()
		return p.refresh(fctx)
	})

	select {
	case <-ctx.Done():
		return "", &errors.AuthError{Reason: "waiting for token", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(Token).Value, nil
	}
}

// ApplyAuth sets the Authorization header on req.
func (p *TokenProvider) ApplyAuth(req *http.Request) error {
	tok, err := p.GetToken(req.Context())
	if err != nil {
		return err
	}
	return NewBearerAuth(tok).ApplyAuth(req)
}

// Invalidate drops the cached token so the next GetToken performs a fresh
// exchange. The persisted token is skipped on that refresh.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = Token{}
	p.skipStore = true
}

// Current returns the cached token, valid or not.
func (p *TokenProvider) Current() Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *TokenProvider) cached() (Token, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, p.token.ValidAt(p.now(), p.margin)
}

func (p *TokenProvider) refresh(ctx context.Context) (Token, error) {
	p.mu.Lock()
	useStore := p.store != nil && !p.skipStore
	p.skipStore = false
	p.mu.Unlock()

	if useStore {
		stored, ok, err := p.store.Load(ctx)
		switch {
		case err != nil:
			p.logger.Warn("failed to load persisted token", "error", err)
		case ok && stored.ValidAt(p.now(), p.refreshBefore):
			p.logger.Debug("using persisted token", "expires_at", stored.ExpiresAt)
			p.set(stored, p.refreshBefore)
			return stored, nil
		}
	}

	tok, err := p.exchange(ctx)
	if err != nil {
		return Token{}, err
	}
	p.set(tok, p.marginFor(tok))
	p.logger.Info("obtained access token", "expires_at", tok.ExpiresAt)

	if p.store != nil {
		if err := p.store.Save(ctx, tok); err != nil {
			// the token is still usable from memory
			p.logger.Warn("failed to persist access token", "error", err)
		}
	}
	return tok, nil
}

func (p *TokenProvider) set(tok Token, margin time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = tok
	p.margin = margin
}

// marginFor caps the refresh margin at half the lifetime of a freshly
// exchanged token so a short-lived token is reused before it is replaced.
func (p *TokenProvider) marginFor(tok Token) time.Duration {
	half := tok.ExpiresAt.Sub(p.now()) / 2
	return max(min(p.refreshBefore, half), 0)
}

// exchange performs the password grant against the token endpoint.
func (p *TokenProvider) exchange(ctx context.Context) (Token, error) {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", p.username)
	data.Set("password", p.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Token{}, &errors.AuthError{Reason: "create token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.doer.Do(req)
	if err != nil {
		return Token{}, &errors.AuthError{Reason: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &errors.AuthError{StatusCode: resp.StatusCode, Reason: "read token response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, &errors.AuthError{
			StatusCode: resp.StatusCode,
			Reason:     strings.TrimSpace(string(body)),
		}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return Token{}, &errors.AuthError{StatusCode: resp.StatusCode, Reason: "malformed token response", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return Token{}, &errors.AuthError{StatusCode: resp.StatusCode, Reason: "token response lacks access_token"}
	}

	now := p.now()
	tok := Token{Value: tokenResp.AccessToken}
	switch {
	case tokenResp.ExpiresIn > 0:
		tok.ExpiresAt = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	default:
		if exp, ok := expiryFromJWT(tokenResp.AccessToken); ok && exp.After(now) {
			tok.ExpiresAt = exp
		} else {
			tok.ExpiresAt = now.Add(p.defaultTTL)
		}
	}
	return tok, nil
}

// String returns a string representation of this auth method
func (p *TokenProvider) String() string {
	return "TokenProvider(user: " + p.username + ", url: " + p.tokenURL + ")"
}
