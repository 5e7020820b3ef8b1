package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// GrantCookieName is the name of the cookie set after a successful unlock.
const GrantCookieName = "weather_report_grant"

// Gate is the optional shared-password gate. A zero password disables it.
// The grant token is per process, so grants do not survive a restart.
type Gate struct {
	password string
	token    string
	log      *slog.Logger
}

// NewGate returns a gate for password that hands out token as its grant.
func NewGate(password, token string, log *slog.Logger) *Gate {
	return &Gate{password: password, token: token, log: log}
}

// Enabled reports whether a password is configured.
func (g *Gate) Enabled() bool { return g.password != "" }

// CheckPassword compares pw to the configured password in constant time.
func (g *Gate) CheckPassword(pw string) bool {
	return subtle.ConstantTimeCompare([]byte(pw), []byte(g.password)) == 1
}

// GrantCookie builds the cookie that proves a prior unlock.
func (g *Gate) GrantCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     GrantCookieName,
		Value:    g.token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (g *Gate) allowed(r *http.Request) bool {
	if c, err := r.Cookie(GrantCookieName); err == nil && g.token != "" &&
		subtle.ConstantTimeCompare([]byte(c.Value), []byte(g.token)) == 1 {
		return true
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	return g.CheckPassword(strings.TrimPrefix(auth, "Bearer "))
}

// Require returns middleware that lets a request through only when the gate
// is disabled or the request carries the grant cookie or
// Authorization: Bearer <password>. Browsers get the gate prompt, API
// clients get a JSON 401.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() || g.allowed(r) {
			next.ServeHTTP(w, r)
			return
		}

		if wantsJSON(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		renderPage(w, http.StatusUnauthorized, pageData{Gate: true}, g.log)
	})
}
