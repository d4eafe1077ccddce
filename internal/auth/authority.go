package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/theakshaypant/calbridge/internal/core"
	"github.com/theakshaypant/calbridge/internal/notify"
)

const (
	// Tokens are treated as expired this long before their actual
	// expiry so an in-flight request never crosses the line.
	expiryBuffer = 5 * time.Minute
	// How long an Authorization-Code attempt waits for the browser
	// callback.
	authorizeTimeout = 5 * time.Minute
)

// LicenseGate decides whether the built-in public credentials may be
// used for the device flow.
type LicenseGate interface {
	CanUseBuiltInCredentials() bool
}

// LicenseFunc adapts a func to LicenseGate.
type LicenseFunc func() bool

func (f LicenseFunc) CanUseBuiltInCredentials() bool { return f() }

// Authority owns OAuth configuration, connection storage, and the two
// authorization flows. All token reads go through GetValidToken, which
// guarantees at most one refresh is in flight per provider.
type Authority struct {
	logger  *slog.Logger
	store   ConnectionStore
	configs map[core.Provider]*ProviderConfig
	license LicenseGate
	notify  notify.Notifier
	prompt  DevicePrompt

	// Refresh deduplication across logically concurrent callers.
	group singleflight.Group

	// Lazily-initialized process-lifetime HTTP client for token
	// endpoint traffic.
	httpOnce   sync.Once
	httpClient *http.Client

	mu       sync.Mutex
	callback *callbackServer // non-nil while an auth-code attempt runs
	closed   bool

	// Injection points for tests.
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	openBrowser func(url string) error
	authTimeout time.Duration
}

// Option configures an Authority.
type Option func(*Authority)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) { a.logger = logger }
}

// WithNotifier sets the user-notice sink.
func WithNotifier(n notify.Notifier) Option {
	return func(a *Authority) { a.notify = n }
}

// WithPrompt sets the device-flow modal.
func WithPrompt(p DevicePrompt) Option {
	return func(a *Authority) { a.prompt = p }
}

// WithHTTPClient overrides the token-endpoint HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authority) { a.httpClient = c }
}

// WithBrowserOpener overrides how the authorization URL is opened.
func WithBrowserOpener(open func(url string) error) Option {
	return func(a *Authority) { a.openBrowser = open }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// WithSleep overrides the poll sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Authority) { a.sleep = sleep }
}

// WithAuthorizeTimeout overrides the callback wait.
func WithAuthorizeTimeout(d time.Duration) Option {
	return func(a *Authority) { a.authTimeout = d }
}

// NewAuthority builds the token authority for the given provider
// configs.
func NewAuthority(store ConnectionStore, configs map[core.Provider]*ProviderConfig, license LicenseGate, opts ...Option) *Authority {
	a := &Authority{
		logger:      slog.Default().With("component", "auth"),
		store:       store,
		configs:     configs,
		license:     license,
		notify:      notify.Discard{},
		prompt:      noopPrompt{},
		now:         time.Now,
		sleep:       sleepCtx,
		openBrowser: OpenBrowser,
		authTimeout: authorizeTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// client returns the process-lifetime HTTP client, creating it on
// first use.
func (a *Authority) client() *http.Client {
	a.httpOnce.Do(func() {
		if a.httpClient == nil {
			a.httpClient = &http.Client{Timeout: 30 * time.Second}
		}
	})
	return a.httpClient
}

func (a *Authority) config(p core.Provider) (*ProviderConfig, error) {
	cfg, ok := a.configs[p]
	if !ok || cfg == nil {
		return nil, errors.Mark(errors.Newf("no configuration for provider %q", p), core.ErrNotConfigured)
	}
	return cfg, nil
}

// Authenticate runs the interactive authorization for a provider.
// User-supplied app credentials select the Authorization-Code+PKCE
// flow; otherwise, a granted license allows the device flow on the
// built-in public client. Neither condition means NotConfigured.
func (a *Authority) Authenticate(ctx context.Context, p core.Provider) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return errors.Mark(errors.New("authority has been shut down"), core.ErrCancelled)
	}

	cfg, err := a.config(p)
	if err != nil {
		return err
	}

	var tok *oauth2.Token
	switch {
	case cfg.UserSupplied:
		tok, err = a.authCodeFlow(ctx, cfg)
	case a.license != nil && a.license.CanUseBuiltInCredentials():
		tok, err = a.deviceFlow(ctx, cfg)
	default:
		return errors.Mark(
			errors.Newf("%s has neither user credentials nor a license for the built-in ones", p),
			core.ErrNotConfigured)
	}
	if err != nil {
		a.logger.Warn("authorization failed", "provider", p, "error", err)
		a.notify.Notify(core.UserMessage(p, err))
		return err
	}

	conn := &Connection{
		Provider:    p,
		Token:       tok,
		ConnectedAt: a.now(),
	}
	if err := a.store.Save(conn); err != nil {
		return errors.Wrapf(err, "persist %s connection", p)
	}

	a.logger.Info("provider connected", "provider", p, "expiry", tok.Expiry)
	a.notify.Notify(p.DisplayName() + " connected.")
	return nil
}

// authCodeFlow runs Authorization-Code+PKCE against a short-lived
// loopback listener.
func (a *Authority) authCodeFlow(ctx context.Context, cfg *ProviderConfig) (*oauth2.Token, error) {
	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	cs, err := newCallbackServer()
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.callback = cs
	a.mu.Unlock()
	defer func() {
		// Listener teardown regardless of outcome.
		a.mu.Lock()
		a.callback = nil
		a.mu.Unlock()
		cs.Close()
	}()

	oc := cfg.OAuth
	oc.RedirectURL = cs.RedirectURL()

	pending := &pendingAuth{
		provider: cfg.Provider,
		verifier: verifier,
		ch:       make(chan authResult, 1),
	}
	cs.Register(state, pending)

	authURL := oc.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
	if err := a.openBrowser(authURL); err != nil {
		a.logger.Warn("could not open browser; visit the URL manually", "url", authURL, "error", err)
	}

	timer := time.NewTimer(a.authTimeout)
	defer timer.Stop()

	var res authResult
	select {
	case res = <-pending.ch:
	case <-timer.C:
		// Removing the entry first makes a late callback a no-op.
		cs.Take(state)
		return nil, errors.Mark(errors.New("timed out waiting for authorization"), core.ErrCancelled)
	case <-ctx.Done():
		cs.Take(state)
		return nil, errors.Mark(ctx.Err(), core.ErrCancelled)
	}
	if res.err != nil {
		return nil, res.err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client())
	tok, err := oc.Exchange(ctx, res.code, oauth2.VerifierOption(pending.verifier))
	if err != nil {
		return nil, classifyTokenError(err, "exchange authorization code")
	}
	return tok, nil
}

// GetValidToken returns an access token valid for at least the expiry
// buffer. An expiring token triggers a refresh deduplicated across
// concurrent callers: racing callers await the same in-flight refresh
// instead of each issuing their own, which would invalidate each
// other's rotated refresh tokens.
func (a *Authority) GetValidToken(ctx context.Context, p core.Provider) (string, error) {
	conn, err := a.store.Load(p)
	if err != nil {
		return "", err
	}
	if conn == nil || conn.Token == nil || conn.Token.AccessToken == "" {
		return "", errors.Mark(errors.Newf("%s is not connected", p), core.ErrTokenExpired)
	}
	if conn.Token.Expiry.Add(-expiryBuffer).After(a.now()) {
		return conn.Token.AccessToken, nil
	}

	v, err, _ := a.group.Do(string(p), func() (any, error) {
		return a.refresh(ctx, p)
	})
	if err != nil {
		return "", err
	}
	return v.(*oauth2.Token).AccessToken, nil
}

// RefreshToken forces a refresh, deduplicated like GetValidToken.
func (a *Authority) RefreshToken(ctx context.Context, p core.Provider) error {
	_, err, _ := a.group.Do(string(p), func() (any, error) {
		return a.refresh(ctx, p)
	})
	return err
}

// refresh exchanges the stored refresh token and replaces the
// connection wholesale. Providers that rotate refresh tokens get the
// new one stored; providers that do not keep the previous one.
func (a *Authority) refresh(ctx context.Context, p core.Provider) (*oauth2.Token, error) {
	cfg, err := a.config(p)
	if err != nil {
		return nil, err
	}
	conn, err := a.store.Load(p)
	if err != nil {
		return nil, err
	}
	if conn == nil || conn.Token == nil {
		return nil, errors.Mark(errors.Newf("%s is not connected", p), core.ErrTokenExpired)
	}
	if conn.Token.RefreshToken == "" {
		return nil, errors.Mark(
			errors.Newf("no refresh token stored for %s; reconnect to continue", p),
			core.ErrTokenExpired)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client())
	ts := cfg.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.Token.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, classifyTokenError(err, "refresh token")
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = conn.Token.RefreshToken
	}

	next := &Connection{
		Provider:    p,
		Token:       tok,
		Account:     conn.Account,
		ConnectedAt: conn.ConnectedAt,
		LastRefresh: a.now(),
	}
	if err := a.store.Save(next); err != nil {
		return nil, errors.Wrapf(err, "persist refreshed %s connection", p)
	}
	a.logger.Debug("token refreshed", "provider", p, "expiry", tok.Expiry)
	return tok, nil
}

// Disconnect best-effort revokes the stored tokens and always clears
// local state. Revocation failures are logged and swallowed; the
// caller sees success once the local record is gone.
func (a *Authority) Disconnect(ctx context.Context, p core.Provider) error {
	cfg, err := a.config(p)
	if err != nil {
		return err
	}
	conn, err := a.store.Load(p)
	if err != nil {
		return err
	}

	if conn != nil && conn.Token != nil && cfg.RevokeURL != "" {
		a.revoke(ctx, cfg, conn.Token.AccessToken)
		if conn.Token.RefreshToken != "" {
			a.revoke(ctx, cfg, conn.Token.RefreshToken)
		}
	}

	if err := a.store.Delete(p); err != nil {
		return errors.Wrapf(err, "clear %s connection", p)
	}
	a.group.Forget(string(p))
	a.logger.Info("provider disconnected", "provider", p)
	a.notify.Notify(p.DisplayName() + " disconnected.")
	return nil
}

// revoke posts one token to the revocation endpoint. Best effort.
func (a *Authority) revoke(ctx context.Context, cfg *ProviderConfig, token string) {
	if token == "" {
		return
	}
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.RevokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		a.logger.Warn("building revocation request failed", "provider", cfg.Provider, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client().Do(req)
	if err != nil {
		a.logger.Warn("token revocation failed", "provider", cfg.Provider, "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		a.logger.Warn("revocation endpoint rejected token", "provider", cfg.Provider, "status", resp.StatusCode)
	}
}

// Destroy is the process-teardown hook: it stops any callback
// listener, rejects pending authorizations, and forgets in-flight
// refreshes so nothing awaits a stale result after shutdown.
func (a *Authority) Destroy() {
	a.mu.Lock()
	cs := a.callback
	a.callback = nil
	a.closed = true
	a.mu.Unlock()

	if cs != nil {
		cs.Close()
	}
	for _, p := range core.Providers {
		a.group.Forget(string(p))
	}
}

// classifyTokenError maps oauth2 transport errors onto the taxonomy.
func classifyTokenError(err error, op string) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		wrapped := errors.Wrap(err, op)
		if rerr.Response != nil {
			if marked := core.MarkStatus(wrapped, rerr.Response.StatusCode); marked != wrapped {
				return marked
			}
		}
		// The provider answered but rejected the grant: the stored
		// token is no longer usable.
		return errors.Mark(wrapped, core.ErrTokenExpired)
	}
	return errors.Mark(errors.Wrap(err, op), core.ErrNetwork)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// noopPrompt is the default prompt when none is wired.
type noopPrompt struct{}

func (noopPrompt) Open(string, string)          {}
func (noopPrompt) Close()                       {}
func (noopPrompt) Cancelled() <-chan struct{}   { return nil }
