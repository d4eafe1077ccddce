package auth

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theakshaypant/calbridge/internal/core"
)

func TestCallbackPortProbing(t *testing.T) {
	first, err := newCallbackServer()
	require.NoError(t, err)
	defer first.Close()

	second, err := newCallbackServer()
	require.NoError(t, err)
	defer second.Close()

	assert.GreaterOrEqual(t, first.Port(), callbackPortMin)
	assert.LessOrEqual(t, first.Port(), callbackPortMax)
	assert.NotEqual(t, first.Port(), second.Port(), "second listener probes past the occupied port")
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d/callback", first.Port()), first.RedirectURL())
}

func TestCallbackUnknownStateIsRejected(t *testing.T) {
	cs, err := newCallbackServer()
	require.NoError(t, err)
	defer cs.Close()

	resp, err := http.Get(cs.RedirectURL() + "?state=bogus&code=whatever")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCallbackDeliversCode(t *testing.T) {
	cs, err := newCallbackServer()
	require.NoError(t, err)
	defer cs.Close()

	p := &pendingAuth{provider: core.ProviderGoogle, ch: make(chan authResult, 1)}
	cs.Register("state-1", p)

	resp, err := http.Get(cs.RedirectURL() + "?state=state-1&code=the-code")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Authorization Complete")

	res := <-p.ch
	require.NoError(t, res.err)
	assert.Equal(t, "the-code", res.code)

	// The state was consumed: a duplicate callback is a no-op.
	resp2, err := http.Get(cs.RedirectURL() + "?state=state-1&code=replayed")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	assert.Empty(t, p.ch)
}

func TestCallbackErrorParamRejects(t *testing.T) {
	cs, err := newCallbackServer()
	require.NoError(t, err)
	defer cs.Close()

	p := &pendingAuth{provider: core.ProviderGoogle, ch: make(chan authResult, 1)}
	cs.Register("state-2", p)

	resp, err := http.Get(cs.RedirectURL() + "?state=state-2&error=access_denied")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	res := <-p.ch
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "access_denied")
}

func TestLateCallbackAfterTimeoutIsNoOp(t *testing.T) {
	cs, err := newCallbackServer()
	require.NoError(t, err)
	defer cs.Close()

	p := &pendingAuth{provider: core.ProviderGoogle, ch: make(chan authResult, 1)}
	cs.Register("state-3", p)

	// The timeout path removes the entry before rejecting.
	taken := cs.Take("state-3")
	require.Same(t, p, taken)

	resp, err := http.Get(cs.RedirectURL() + "?state=state-3&code=too-late")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, p.ch, "a late callback must not resolve the attempt")
}

func TestRandomStateUnique(t *testing.T) {
	s1, err := randomState()
	require.NoError(t, err)
	s2, err := randomState()
	require.NoError(t, err)
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, s1, s2)
}
