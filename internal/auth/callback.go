package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/theakshaypant/calbridge/internal/core"
)

// Loopback ports probed for the OAuth redirect, in order. Provider app
// registrations list these exact redirect URIs.
const (
	callbackPortMin = 8080
	callbackPortMax = 8090
	callbackPath    = "/callback"
)

const callbackPage = `<!DOCTYPE html>
<html>
<head>
	<title>Authorization Complete</title>
	<style>
		body { font-family: -apple-system, sans-serif; display: flex;
		       justify-content: center; align-items: center; height: 100vh;
		       margin: 0; background: #1a1a1a; color: #fff; }
		.card { background: #2d2d2d; padding: 40px; border-radius: 12px;
		        box-shadow: 0 2px 10px rgba(0,0,0,0.3); text-align: center; }
		h1 { color: #4ade80; margin-bottom: 10px; }
		p { color: #a1a1aa; }
	</style>
</head>
<body>
	<div class="card">
		<h1>Authorization Complete</h1>
		<p>You can close this window and return to the application.</p>
	</div>
</body>
</html>`

// authResult is what the callback handler delivers to the awaiting
// authorization attempt.
type authResult struct {
	code string
	err  error
}

// pendingAuth is an in-flight authorization keyed by its CSRF state.
// The channel is buffered so the handler never blocks; the entry is
// consumed exactly once.
type pendingAuth struct {
	provider core.Provider
	verifier string
	ch       chan authResult
}

// callbackServer is the short-lived loopback listener for one or more
// Authorization-Code attempts. Its lifetime is scoped to the attempt:
// acquired in Authenticate, released in a defer.
type callbackServer struct {
	mu      sync.Mutex
	pending map[string]*pendingAuth
	srv     *http.Server
	port    int
}

// newCallbackServer binds the first free loopback port in the probe
// range and starts serving the callback handler.
func newCallbackServer() (*callbackServer, error) {
	cs := &callbackServer{pending: make(map[string]*pendingAuth)}

	var ln net.Listener
	var err error
	for port := callbackPortMin; port <= callbackPortMax; port++ {
		ln, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			cs.port = port
			break
		}
	}
	if ln == nil {
		return nil, errors.Mark(
			errors.Wrapf(err, "no free callback port in %d-%d", callbackPortMin, callbackPortMax),
			core.ErrNetwork)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, cs.handle)
	cs.srv = &http.Server{Handler: mux}
	go cs.srv.Serve(ln) //nolint:errcheck // ErrServerClosed on teardown

	return cs, nil
}

// Port returns the bound loopback port.
func (cs *callbackServer) Port() int { return cs.port }

// RedirectURL returns the redirect URI for this listener.
func (cs *callbackServer) RedirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", cs.port, callbackPath)
}

// Register adds a pending authorization under its state token.
func (cs *callbackServer) Register(state string, p *pendingAuth) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.pending[state] = p
}

// Take removes and returns the pending authorization for state, if
// any. Removal before delivery makes late or duplicate callbacks for
// the same state a no-op.
func (cs *callbackServer) Take(state string) *pendingAuth {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	p := cs.pending[state]
	delete(cs.pending, state)
	return p
}

// Close stops the listener and rejects every still-pending attempt.
func (cs *callbackServer) Close() {
	cs.mu.Lock()
	for state, p := range cs.pending {
		delete(cs.pending, state)
		p.ch <- authResult{err: errors.Mark(errors.New("authorization abandoned"), core.ErrCancelled)}
	}
	cs.mu.Unlock()
	_ = cs.srv.Close()
}

func (cs *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")

	p := cs.Take(state)
	if p == nil {
		// Unknown or already-consumed state: either a CSRF attempt
		// or a callback that lost the race with the timeout.
		http.Error(w, "unknown authorization state", http.StatusNotFound)
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		p.ch <- authResult{err: errors.Newf("provider returned authorization error %q", errParam)}
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		p.ch <- authResult{err: errors.New("callback carried no authorization code")}
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, callbackPage)
	p.ch <- authResult{code: code}
}

// randomState returns a CSRF state token.
func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate state token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
