// Package handlers contains HTTP handlers for AutoDJ-Go. This file groups
// authentication related helpers and endpoints such as the OAuth login and
// callback handlers. The session cookie carries only a signed opaque session
// identifier; tokens live server-side in the credential store. CSRF
// protection uses a random token stored in a cookie which clients must echo
// back in the `X-CSRF-Token` header for all state changing requests.
package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"AutoDJ-Go/pkg/credentials"
)

const sessionCookieName = "autodj_session"

// Authenticator abstracts the identity provider's authorization-code flow.
// The production implementation wraps the Spotify OAuth endpoints; tests
// substitute a fake.
type Authenticator interface {
	// AuthURL returns the provider's authorization URL for state.
	AuthURL(state string) string
	// Token exchanges the authorization code carried by r for a token.
	Token(state string, r *http.Request) (*oauth2.Token, error)
	// CurrentUserID resolves the provider's user identifier for a token.
	CurrentUserID(tok *oauth2.Token) (string, error)
}

// signValue computes an HMAC signature for value and appends it using the
// format value|signature. The signature is base64 URL encoded so it can be
// safely stored in cookies.
func signValue(value string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	sig := mac.Sum(nil)
	return value + "|" + base64.RawURLEncoding.EncodeToString(sig)
}

// verifyValue checks the HMAC signature appended to signed. It returns the
// original value and true when the signature matches the provided key.
func verifyValue(signed string, key []byte) (string, bool) {
	parts := strings.Split(signed, "|")
	if len(parts) != 2 {
		return "", false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(parts[0]))
	expected := mac.Sum(nil)
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || !hmac.Equal(expected, sig) {
		return "", false
	}
	return parts[0], true
}

// setCSRFToken generates a new random token and sets it in a cookie. The
// cookie is not HttpOnly so client-side scripts can read the value and attach
// it to subsequent requests.
func setCSRFToken(w http.ResponseWriter, secure bool) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "csrf_token",
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// verifyCSRF compares the X-CSRF-Token header with the csrf_token cookie in
// constant time.
func verifyCSRF(r *http.Request) bool {
	c, err := r.Cookie("csrf_token")
	if err != nil {
		return false
	}
	header := r.Header.Get("X-CSRF-Token")
	if header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(header)) == 1
}

// sessionFromCookie returns the verified session ID from the request cookie.
// An error is returned when the cookie is missing or has been tampered with.
func (app *Application) sessionFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", err
	}
	if v, ok := verifyValue(c.Value, app.SignKey); ok {
		return v, nil
	}
	return "", fmt.Errorf("invalid signature")
}

// requireUser resolves the request's session to a user ID, enforcing CSRF on
// state-changing requests. It writes a 401 response on failure.
func (app *Application) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid, err := app.sessionFromCookie(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	userID, ok := app.Sessions.Lookup(sid)
	if !ok {
		app.clearSessionCookies(w, r)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead && !verifyCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return "", false
	}
	return userID, true
}

// Login begins the OAuth flow and redirects the user to the authorization
// URL with a signed state value stored in a cookie.
func (app *Application) Login(w http.ResponseWriter, r *http.Request) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    signValue(state, app.SignKey),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, app.Authenticator.AuthURL(state), http.StatusFound)
}

// OAuthCallback completes the OAuth flow by exchanging the authorization code
// for a token. The token pair is stored server-side and a signed session
// cookie referencing it is issued to the client.
func (app *Application) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("code") == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}
	c, err := r.Cookie("oauth_state")
	if err != nil {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	state, ok := verifyValue(c.Value, app.SignKey)
	if !ok || r.URL.Query().Get("state") != state {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Path: "/", MaxAge: -1})

	token, err := app.Authenticator.Token(state, r)
	if err != nil {
		app.logger().WithError(err).Error("code exchange failed")
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	userID, err := app.Authenticator.CurrentUserID(token)
	if err != nil {
		app.logger().WithError(err).Error("fetch user profile failed")
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	app.Store.Put(userID, credentials.Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiry,
	})

	sid, err := app.Sessions.Create(userID)
	if err != nil {
		http.Error(w, "session creation failed", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signValue(sid, app.SignKey),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	// Issue a CSRF token for the session so clients can include it with
	// state-changing requests.
	if _, err := setCSRFToken(w, r.TLS != nil); err != nil {
		http.Error(w, "csrf token", http.StatusInternalServerError)
		return
	}
	app.logger().WithField("user_id", userID).Info("user authenticated")
	http.Redirect(w, r, "/", http.StatusFound)
}

// AuthStatus reports whether the request carries a live session.
func (app *Application) AuthStatus(w http.ResponseWriter, r *http.Request) {
	if sid, err := app.sessionFromCookie(r); err == nil {
		if _, ok := app.Sessions.Lookup(sid); ok {
			fmt.Fprint(w, "Authenticated")
			return
		}
	}
	http.Error(w, "Not Authenticated", http.StatusUnauthorized)
}

// Logout destroys the session and credential so the user must
// re-authenticate, then clears the cookies on the client.
func (app *Application) Logout(w http.ResponseWriter, r *http.Request) {
	if sid, err := app.sessionFromCookie(r); err == nil {
		if userID, ok := app.Sessions.Lookup(sid); ok {
			app.Gateway.Invalidate(userID)
			app.logger().WithField("user_id", userID).Info("user logged out")
		}
		app.Sessions.Destroy(sid)
	}
	app.clearSessionCookies(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

// RefreshToken forces a token exchange for the session's user regardless of
// the stored expiry. A rejected exchange destroys the session, matching the
// gateway's behaviour on the implicit refresh path.
func (app *Application) RefreshToken(w http.ResponseWriter, r *http.Request) {
	sid, err := app.sessionFromCookie(r)
	if err != nil {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	userID, ok := app.Sessions.Lookup(sid)
	if !ok {
		app.clearSessionCookies(w, r)
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	if _, err := app.Gateway.ForceRefresh(r.Context(), userID); err != nil {
		app.logger().WithError(err).WithField("user_id", userID).Error("forced refresh failed")
		app.clearSessionCookies(w, r)
		http.Error(w, "token refresh failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "token refreshed"})
}

// clearSessionCookies expires the session and CSRF cookies on the client.
func (app *Application) clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{Name: "csrf_token", Path: "/", MaxAge: -1})
}
