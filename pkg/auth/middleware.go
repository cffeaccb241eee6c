package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/identity"
)

// Claims are the bearer token claims the API issues and expects.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

// Verifier validates bearer tokens against a key set.
type Verifier struct {
	keySet identity.KeySet
}

// NewVerifier returns nil for a nil key set, which makes the
// middleware fail closed.
func NewVerifier(ks identity.KeySet) *Verifier {
	if ks == nil {
		return nil
	}
	return &Verifier{keySet: ks}
}

// Verify parses the token and returns its claims.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.keySet.KeyFunc())
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// publicPaths never require a token.
var publicPaths = map[string]bool{
	"/health":    true,
	"/readiness": true,
}

// NewMiddleware authenticates every non-public request. A nil verifier
// rejects everything non-public: misconfigured auth fails closed, not
// open.
func NewMiddleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, "missing Authorization header")
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				writeUnauthorized(w, "Authorization header must be 'Bearer <token>'")
				return
			}
			if verifier == nil {
				writeUnauthorized(w, "authentication is not configured")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			if claims.Subject == "" {
				writeUnauthorized(w, "token has no subject")
				return
			}

			p := Principal{
				ID:         claims.Subject,
				Role:       contracts.ApprovalRole(claims.Role),
				Department: claims.Department,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// writeUnauthorized emits an RFC 7807 problem document. Kept local so
// the auth layer does not depend on the handler package it wraps.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  "Unauthorized",
		"status": http.StatusUnauthorized,
		"detail": detail,
	})
}
