// Package auth owns OAuth configuration, the two authorization flows,
// token storage, single-flight refresh, and revocation. Everything
// else reads tokens through Authority.GetValidToken and never touches
// them directly.
package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/theakshaypant/calbridge/internal/core"
)

// Built-in public client ids used by the device flow. Both are public
// clients by design: the device grant does not need a secret.
const (
	builtinGoogleClientID     = "761326798069-calbridge-device.apps.googleusercontent.com"
	builtinGoogleClientSecret = "d-FL95Q19q7MQmFpd7hHD0Ty" // installed-app "secret", not confidential
	builtinOutlookClientID    = "6731de76-14a6-49ae-97bc-6eba6914391e"

	googleRevokeURL = "https://oauth2.googleapis.com/revoke"
)

// Credentials are the user-supplied client credentials for a provider,
// loaded once at startup from config. Empty ClientID means the user
// has not registered their own app.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// TenantID applies to Outlook only; defaults to "common".
	TenantID string
}

// ProviderConfig is the static OAuth configuration for one provider.
type ProviderConfig struct {
	Provider core.Provider
	// OAuth carries client id/secret, endpoints (including the
	// device-authorization endpoint) and scopes. RedirectURL is
	// filled in per authorization attempt once a callback port is
	// bound.
	OAuth oauth2.Config
	// RevokeURL is the token-revocation endpoint; empty when the
	// provider has none, in which case disconnect is local-only.
	RevokeURL string
	// UserSupplied is true when the client credentials came from the
	// user's config rather than the built-in public client.
	UserSupplied bool
}

// NewProviderConfig builds the configuration for a provider. When the
// user supplied no credentials, the built-in public client is used;
// whether that client may be exercised is the license gate's call, not
// ours.
func NewProviderConfig(p core.Provider, creds Credentials) *ProviderConfig {
	switch p {
	case core.ProviderGoogle:
		cfg := &ProviderConfig{
			Provider: p,
			OAuth: oauth2.Config{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
				Endpoint:     google.Endpoint,
				Scopes: []string{
					calendar.CalendarEventsScope,
					calendar.CalendarReadonlyScope,
				},
			},
			RevokeURL:    googleRevokeURL,
			UserSupplied: creds.ClientID != "",
		}
		if !cfg.UserSupplied {
			cfg.OAuth.ClientID = builtinGoogleClientID
			cfg.OAuth.ClientSecret = builtinGoogleClientSecret
		}
		return cfg

	case core.ProviderOutlook:
		tenant := creds.TenantID
		if tenant == "" {
			tenant = "common"
		}
		cfg := &ProviderConfig{
			Provider: p,
			OAuth: oauth2.Config{
				ClientID: creds.ClientID,
				Endpoint: microsoft.AzureADEndpoint(tenant),
				Scopes: []string{
					"https://graph.microsoft.com/Calendars.ReadWrite",
					"https://graph.microsoft.com/User.Read",
					"offline_access",
				},
			},
			// Microsoft has no self-service revocation endpoint;
			// disconnect clears local state only.
			RevokeURL:    "",
			UserSupplied: creds.ClientID != "",
		}
		if !cfg.UserSupplied {
			cfg.OAuth.ClientID = builtinOutlookClientID
		}
		return cfg

	default:
		return nil
	}
}
