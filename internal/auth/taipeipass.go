// Package auth covers the federated (TaipeiPass) identity-provider
// integration and client-side token inspection.
//
// FEDERATED FLOW, FRONT HALF:
// Before the session core ever sees an authorization code, the user has
// to be sent to the identity provider:
//
//  1. We build the provider's authorization URL with our client ID and
//     a random state, and navigate the user there.
//  2. The user authenticates with the provider.
//  3. The provider redirects back to our callback URL with ?code=&state=.
//  4. The code is handed to session.Manager.LoginByTaipeiPass, which
//     exchanges it at the dashboard backend's /auth/callback.
//
// Note the back half differs from classic OAuth: the code-for-token
// exchange happens at the *dashboard backend*, not at the provider's
// token endpoint, so oauth2.Config is used here only to assemble the
// authorize URL.
package auth

import (
	"github.com/rs/xid"
	"golang.org/x/oauth2"
)

// TaipeiPassProvider builds authorization URLs for the TaipeiPass
// identity provider.
type TaipeiPassProvider struct {
	config *oauth2.Config
}

// NewTaipeiPassProvider creates a provider for the given registration.
// redirectURL must match the callback URL registered with TaipeiPass
// exactly.
func NewTaipeiPassProvider(clientID, authURL, redirectURL string) *TaipeiPassProvider {
	return &TaipeiPassProvider{
		config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURL,
			Scopes:      []string{"id"},
			Endpoint: oauth2.Endpoint{
				AuthURL: authURL,
			},
		},
	}
}

// AuthURL returns the URL to navigate the user to for authorization.
//
// The state must be verified when the provider redirects back — it is
// what ties the callback to a flow this client started (CSRF defense).
func (p *TaipeiPassProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// NewState returns a random, unguessable state value for AuthURL.
// Example: "cv37rs3pp9olc6atsptg".
func NewState() string {
	return xid.New().String()
}
