package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theakshaypant/calbridge/internal/core"
)

// fakePrompt records the displayed code and exposes a cancel switch.
type fakePrompt struct {
	opened    bool
	closed    bool
	url       string
	code      string
	cancelled chan struct{}
}

func newFakePrompt() *fakePrompt {
	return &fakePrompt{cancelled: make(chan struct{})}
}

func (f *fakePrompt) Open(url, code string) {
	f.opened = true
	f.url = url
	f.code = code
}
func (f *fakePrompt) Close()                     { f.closed = true }
func (f *fakePrompt) Cancelled() <-chan struct{} { return f.cancelled }

// deviceServer serves a device-code grant followed by a scripted
// sequence of token-poll responses.
func deviceServer(t *testing.T, pollResponses []string) (*httptest.Server, *int) {
	t.Helper()
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/device", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "dev-code-1",
			"user_code":        "WDJB-MJHT",
			"verification_uri": "https://example.com/activate",
			"expires_in":       1800,
			"interval":         5,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", r.Form.Get("grant_type"))
		assert.Equal(t, "dev-code-1", r.Form.Get("device_code"))
		require.Less(t, polls, len(pollResponses), "more polls than scripted responses")
		body := pollResponses[polls]
		polls++
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(body, `"error"`) {
			w.WriteHeader(http.StatusBadRequest)
		}
		w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func deviceAuthority(srv *httptest.Server, prompt DevicePrompt, sleeps *[]time.Duration) *Authority {
	cfg := testConfig(core.ProviderOutlook, srv.URL+"/token", "", srv.URL+"/device", "", false)
	cfg.OAuth.ClientSecret = ""
	configs := map[core.Provider]*ProviderConfig{core.ProviderOutlook: cfg}
	return NewAuthority(NewMemoryStore(), configs,
		LicenseFunc(func() bool { return true }),
		WithPrompt(prompt),
		WithSleep(func(_ context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		}))
}

const pendingBody = `{"error":"authorization_pending"}`
const slowDownBody = `{"error":"slow_down"}`
const tokensBody = `{"access_token":"device-access","refresh_token":"device-refresh","token_type":"Bearer","expires_in":3600,"scope":"calendar"}`

func TestDeviceFlowPollsUntilApproved(t *testing.T) {
	srv, polls := deviceServer(t, []string{pendingBody, pendingBody, tokensBody})
	prompt := newFakePrompt()
	var sleeps []time.Duration
	a := deviceAuthority(srv, prompt, &sleeps)

	require.NoError(t, a.Authenticate(context.Background(), core.ProviderOutlook))

	assert.Equal(t, 3, *polls, "two pending responses then tokens = exactly 3 polls")
	assert.True(t, prompt.opened)
	assert.True(t, prompt.closed, "modal closes regardless of outcome")
	assert.Equal(t, "https://example.com/activate", prompt.url)
	assert.Equal(t, "WDJB-MJHT", prompt.code)

	conn, err := a.store.Load(core.ProviderOutlook)
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "device-access", conn.Token.AccessToken)
	assert.Equal(t, "device-refresh", conn.Token.RefreshToken)
	assert.True(t, conn.Token.Expiry.After(time.Now()), "expiry must be in the future at issuance")
}

func TestDeviceFlowExpiredTokenIsTerminal(t *testing.T) {
	srv, polls := deviceServer(t, []string{`{"error":"expired_token"}`})
	prompt := newFakePrompt()
	a := deviceAuthority(srv, prompt, nil)

	err := a.Authenticate(context.Background(), core.ProviderOutlook)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTokenExpired))
	assert.Equal(t, 1, *polls, "terminal responses stop polling immediately")
}

func TestDeviceFlowAccessDeniedIsTerminal(t *testing.T) {
	srv, polls := deviceServer(t, []string{`{"error":"access_denied"}`})
	a := deviceAuthority(srv, newFakePrompt(), nil)

	err := a.Authenticate(context.Background(), core.ProviderOutlook)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCancelled))
	assert.Equal(t, 1, *polls)
}

func TestDeviceFlowSlowDownBumpsInterval(t *testing.T) {
	srv, _ := deviceServer(t, []string{slowDownBody, pendingBody, tokensBody})
	var sleeps []time.Duration
	a := deviceAuthority(srv, newFakePrompt(), &sleeps)

	require.NoError(t, a.Authenticate(context.Background(), core.ProviderOutlook))

	require.Len(t, sleeps, 3)
	assert.Equal(t, 5*time.Second, sleeps[0], "server-suggested interval")
	assert.Equal(t, 10*time.Second, sleeps[1], "slow_down adds the fixed increment")
	assert.Equal(t, 10*time.Second, sleeps[2], "interval stays bumped")
}

func TestDeviceFlowUserCancellation(t *testing.T) {
	srv, polls := deviceServer(t, []string{pendingBody})
	prompt := newFakePrompt()
	close(prompt.cancelled) // dismissed before the first sleep
	a := deviceAuthority(srv, prompt, nil)

	err := a.Authenticate(context.Background(), core.ProviderOutlook)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCancelled))
	assert.Equal(t, 0, *polls, "cancellation is checked before every sleep and poll")
}

func TestDeviceFlowLicenseGateDenied(t *testing.T) {
	srv, _ := deviceServer(t, nil)
	cfg := testConfig(core.ProviderOutlook, srv.URL+"/token", "", srv.URL+"/device", "", false)
	a := NewAuthority(NewMemoryStore(),
		map[core.Provider]*ProviderConfig{core.ProviderOutlook: cfg},
		LicenseFunc(func() bool { return false }))

	err := a.Authenticate(context.Background(), core.ProviderOutlook)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotConfigured))
}
