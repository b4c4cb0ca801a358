package auth

import (
	"net/http"
	"strings"
	"time"
)

// CookieOptions controls the attributes of the local session cookie.
type CookieOptions struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
}

// ParseSameSite maps a configuration value onto http.SameSite, defaulting to Lax.
func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (o CookieOptions) name() string {
	if o.Name == "" {
		return SessionCookieName
	}
	return o.Name
}

func (o CookieOptions) sameSite() http.SameSite {
	if o.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return o.SameSite
}

// Read returns the session token carried by r, if any.
func (o CookieOptions) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(o.name())
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Set writes the session cookie. It carries only the opaque token.
func (o CookieOptions) Set(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.name(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.sameSite(),
	})
}

// Clear expires the session cookie in the browser.
func (o CookieOptions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.name(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.sameSite(),
	})
}
