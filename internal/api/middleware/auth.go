package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/videoforge/videoforge/internal/api/response"
)

const keyPrefixLen = 8

// Auth validates API keys against a configured set of bcrypt hashes. Raw keys
// are never stored; the first 8 characters of the presented key double as the
// rate-limit bucket.
type Auth struct {
	hashes [][]byte
}

// NewAuth creates the auth middleware. An empty hash list disables
// authentication entirely (development mode).
func NewAuth(hashes []string) *Auth {
	a := &Auth{}
	for _, h := range hashes {
		a.hashes = append(a.hashes, []byte(h))
	}
	return a
}

// Authenticate validates the Bearer token and sets the rate-limit key prefix
// in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.hashes) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}
		if len(rawKey) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key format", nil)
			return
		}

		var matched bool
		for _, hash := range a.hashes {
			if bcrypt.CompareHashAndPassword(hash, []byte(rawKey)) == nil {
				matched = true
				break
			}
		}
		if !matched {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		r = r.WithContext(setKeyPrefix(r.Context(), rawKey[:keyPrefixLen]))
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
