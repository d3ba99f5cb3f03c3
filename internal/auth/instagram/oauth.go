// Package instagram implements the provider OAuth flow: consent redirect,
// callback code exchange, and connection creation.
package instagram

import (
	"github.com/bizpulse/socialsync/internal/config"
	"github.com/bizpulse/socialsync/internal/graph"
	"golang.org/x/oauth2"
)

// Endpoint is the Instagram Business Login OAuth endpoint pair.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://www.instagram.com/oauth/authorize",
	TokenURL: "https://api.instagram.com/oauth/access_token",
}

// RequestedScopes is the full consent this application asks for. The provider
// may grant a subset; granted scopes are stored per connection and checked per
// operation.
var RequestedScopes = []string{
	graph.ScopeBasic,
	graph.ScopeManageMessages,
	graph.ScopeManageComments,
}

// OAuthConfig returns the OAuth2 config for the provider login flow.
func OAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppSecret,
		RedirectURL:  cfg.RedirectURL(),
		Scopes:       RequestedScopes,
		Endpoint:     Endpoint,
	}
}
