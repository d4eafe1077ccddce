package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"

	"github.com/theakshaypant/calbridge/internal/core"
)

const (
	defaultPollInterval = 5 * time.Second
	// slow_down bumps the interval by this much, per RFC 8628.
	slowDownIncrement = 5 * time.Second
	maxPollAttempts   = 120
)

// DevicePrompt is the modal that shows the user code and verification
// URL while the device flow polls. Cancelled is closed when the user
// dismisses the modal.
type DevicePrompt interface {
	Open(verificationURL, userCode string)
	Close()
	Cancelled() <-chan struct{}
}

// deviceTokenResponse is the token endpoint's poll response. On
// non-200 the Error field carries the RFC 8628 code.
type deviceTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
	Error        string `json:"error"`
}

// deviceFlow runs the Device-Authorization grant: request a device
// code, show it to the user, poll the token endpoint until the user
// approves, cancels, or the code expires.
func (a *Authority) deviceFlow(ctx context.Context, cfg *ProviderConfig) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client())

	da, err := cfg.OAuth.DeviceAuth(ctx)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "request device code"), core.ErrNetwork)
	}

	verificationURL := da.VerificationURI
	if da.VerificationURIComplete != "" {
		verificationURL = da.VerificationURIComplete
	}
	a.prompt.Open(verificationURL, da.UserCode)
	defer a.prompt.Close()

	interval := defaultPollInterval
	if da.Interval > 0 {
		interval = time.Duration(da.Interval) * time.Second
	}

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		// Cancellation is checked before every sleep so a dismissed
		// modal never waits out another interval.
		select {
		case <-a.prompt.Cancelled():
			return nil, errors.Mark(errors.New("device authorization dismissed"), core.ErrCancelled)
		case <-ctx.Done():
			return nil, errors.Mark(ctx.Err(), core.ErrCancelled)
		default:
		}
		if err := a.sleep(ctx, interval); err != nil {
			return nil, errors.Mark(err, core.ErrCancelled)
		}

		resp, err := a.pollDeviceToken(ctx, cfg, da.DeviceCode)
		if err != nil {
			return nil, err
		}

		switch resp.Error {
		case "":
			tok := &oauth2.Token{
				AccessToken:  resp.AccessToken,
				RefreshToken: resp.RefreshToken,
				TokenType:    resp.TokenType,
				Expiry:       a.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
			}
			return tok.WithExtra(map[string]any{"scope": resp.Scope}), nil
		case "authorization_pending":
			// User hasn't approved yet.
		case "slow_down":
			interval += slowDownIncrement
		case "expired_token":
			return nil, errors.Mark(errors.New("device code expired before approval"), core.ErrTokenExpired)
		case "access_denied":
			return nil, errors.Mark(errors.New("user denied the authorization request"), core.ErrCancelled)
		default:
			return nil, errors.Newf("device authorization failed: %s", resp.Error)
		}
	}

	return nil, errors.Mark(errors.New("device authorization polling gave up"), core.ErrTokenExpired)
}

// pollDeviceToken issues one poll against the token endpoint. Protocol
// errors (authorization_pending etc.) come back in the response, not
// as Go errors.
func (a *Authority) pollDeviceToken(ctx context.Context, cfg *ProviderConfig, deviceCode string) (*deviceTokenResponse, error) {
	form := url.Values{
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {deviceCode},
		"client_id":   {cfg.OAuth.ClientID},
	}
	if cfg.OAuth.ClientSecret != "" {
		form.Set("client_secret", cfg.OAuth.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.OAuth.Endpoint.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build token poll request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := a.client().Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "poll token endpoint"), core.ErrNetwork)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read token poll response"), core.ErrNetwork)
	}

	var resp deviceTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "decode token poll response (status %d)", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK && resp.Error == "" {
		return nil, errors.Newf("token endpoint returned status %d", httpResp.StatusCode)
	}
	return &resp, nil
}
