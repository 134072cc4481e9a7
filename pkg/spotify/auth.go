// This file wraps the Spotify OAuth authorization-code flow. The scopes
// requested cover exactly what the pipeline needs: reading playback state and
// modifying the queue.
package spotify

import (
	"net/http"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
)

// Auth handles the authorization-code login flow against the Spotify
// accounts service.
type Auth struct {
	auth         spotify.Authenticator
	clientID     string
	clientSecret string
	redirectURL  string
}

// NewAuth configures the login flow with the given application credentials.
func NewAuth(clientID, clientSecret, redirectURL string) Auth {
	a := spotify.NewAuthenticator(redirectURL,
		spotify.ScopeUserReadCurrentlyPlaying,
		spotify.ScopeUserReadPlaybackState,
		spotify.ScopeUserModifyPlaybackState,
	)
	a.SetAuthInfo(clientID, clientSecret)
	return Auth{auth: a, clientID: clientID, clientSecret: clientSecret, redirectURL: redirectURL}
}

// AuthURL returns the provider authorization URL for state.
func (a Auth) AuthURL(state string) string {
	return a.auth.AuthURL(state)
}

// Token exchanges the authorization code carried by r for a token pair.
func (a Auth) Token(state string, r *http.Request) (*oauth2.Token, error) {
	return a.auth.Token(state, r)
}

// CurrentUserID resolves the Spotify user ID owning tok.
func (a Auth) CurrentUserID(tok *oauth2.Token) (string, error) {
	client := a.auth.NewClient(tok)
	user, err := client.CurrentUser()
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// OAuthConfig returns the oauth2 configuration for the refresh-token grant,
// used by the auth gateway's token exchanger. The token endpoint expects the
// client id and secret in a Basic auth header, which oauth2.Config does by
// default.
func (a Auth) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		RedirectURL:  a.redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotify.AuthURL,
			TokenURL: spotify.TokenURL,
		},
	}
}
