package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/logger"
)

// Probes and scrapes stay open so orchestrators need no credentials.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// keyring holds SHA-256 digests so every comparison runs over equal-length inputs.
type keyring [][sha256.Size]byte

func newKeyring(keys []string) keyring {
	var kr keyring
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			kr = append(kr, sha256.Sum256([]byte(k)))
		}
	}
	return kr
}

// match checks token against every key without short-circuiting and returns a short
// fingerprint of the matched key for logs.
func (kr keyring) match(token string) (string, bool) {
	sum := sha256.Sum256([]byte(token))
	hit := 0
	for _, d := range kr {
		hit |= subtle.ConstantTimeCompare(d[:], sum[:])
	}
	if hit != 1 {
		return "", false
	}
	return hex.EncodeToString(sum[:4]), true
}

// BearerAuthMiddleware requires "Authorization: Bearer <key>" on every non-public route.
// With no non-blank keys configured it is a pass-through.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	kr := newKeyring(apiKeys)

	return func(next http.Handler) http.Handler {
		if len(kr) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason == "" {
				fp, ok := kr.match(token)
				if ok {
					ctx := logger.With(r.Context(), zap.String("api_key", fp))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				reason = "invalid api key"
			}

			w.Header().Set("WWW-Authenticate", `Bearer realm="defectscope"`)
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, reason)
		})
	}
}

// bearerToken extracts the credential; the scheme name is case-insensitive (RFC 7235).
// A non-empty second result is the client-facing reason for rejection.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}
