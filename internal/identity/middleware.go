package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/farmconnect/marketplace/internal/httpx"
)

// Authenticate verifies the bearer token and replaces any identity headers
// sent by the client with the verified identity. When required is false a
// request without a token passes through anonymously.
func Authenticate(tokens *TokenManager, required bool, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			Strip(r.Header)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && !required {
				next(w, r)
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				httpx.WriteMessage(w, logger, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				httpx.WriteError(w, logger, err)
				return
			}

			Inject(r.Header, claims.Identity())
			next(w, r)
		}
	}
}
