package web

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// requireAuth enforces bearer-token auth when auth_token_hash is configured.
// The config stores a bcrypt hash, never the token itself.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := ""
		if s.Config.AuthTokenHash != nil {
			hash = *s.Config.AuthTokenHash
		}
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			jsonError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			jsonError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}
