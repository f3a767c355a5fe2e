package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuthConfig holds the single operator credential.
type BasicAuthConfig struct {
	User         string
	Password     string
	PasswordHash string // bcrypt; takes precedence over Password
	Realm        string
	Exempt       []string // exact paths served without credentials
}

// BasicAuth gates every request behind one username and password.
func BasicAuth(cfg BasicAuthConfig) func(http.Handler) http.Handler {
	realm := cfg.Realm
	if realm == "" {
		realm = "DreamTales"
	}
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, p := range cfg.Exempt {
		exempt[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok || !cfg.check(user, pass) {
				if ok {
					slog.Warn("Basic auth rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (cfg BasicAuthConfig) check(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.User)) == 1
	var passOK bool
	if cfg.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(pass)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Password)) == 1
	}
	return userOK && passOK
}
