package services

import (
	"github.com/desertthunder/isoca/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// SpotifyEndpoint is the Spotify accounts service.
var SpotifyEndpoint = oauth2.Endpoint{
	AuthURL:  spotifyAuthURL,
	TokenURL: spotifyTokenURL,
}

// AuthConfig builds the [oauth2.Config] for the configured Spotify application.
func AuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes(),
		Endpoint:     SpotifyEndpoint,
	}
}

// AuthorizeURL returns the identity provider page the user is sent to for consent.
//
// No state or PKCE parameters are sent: the callback cannot tell a forged redirect from a
// genuine one. This is a known gap of the flow.
func AuthorizeURL(cfg shared.SpotifyConfig) string {
	return AuthConfig(cfg).AuthCodeURL("")
}
