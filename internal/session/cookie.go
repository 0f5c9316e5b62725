package session

import (
	"errors"
	"fmt"
	"net/http"
)

// CookiePrefix names the per-table credential cookie: table_session_<id>.
const CookiePrefix = "table_session_"

func CookieName(tableID int64) string { return fmt.Sprintf("%s%d", CookiePrefix, tableID) }

// CookieCredentials keeps a device's table credential in a cookie. Writes
// are visible to later Loads within the same request.
type CookieCredentials struct {
	w      http.ResponseWriter
	r      *http.Request
	name   string
	secure bool

	loaded bool
	token  string
	ok     bool
}

var _ CredentialStore = (*CookieCredentials)(nil)

func NewCookieCredentials(w http.ResponseWriter, r *http.Request, tableID int64, secure bool) *CookieCredentials {
	return &CookieCredentials{w: w, r: r, name: CookieName(tableID), secure: secure}
}

func (c *CookieCredentials) Load() (string, bool, error) {
	if c.loaded {
		return c.token, c.ok, nil
	}
	ck, err := c.r.Cookie(c.name)
	switch {
	case errors.Is(err, http.ErrNoCookie):
		c.token, c.ok = "", false
	case err != nil:
		return "", false, err
	default:
		c.token, c.ok = ck.Value, ck.Value != ""
	}
	c.loaded = true
	return c.token, c.ok, nil
}

func (c *CookieCredentials) Save(token string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.loaded, c.token, c.ok = true, token, true
	return nil
}

func (c *CookieCredentials) Clear() error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.loaded, c.token, c.ok = true, "", false
	return nil
}
