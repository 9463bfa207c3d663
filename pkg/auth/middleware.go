// Package auth authenticates API callers from EdDSA-signed bearer tokens and
// carries the resulting principal through the request context.
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kalamgit143/validAIte-sub004/pkg/api"
)

// Issuer is the iss claim of API tokens.
const Issuer = "helm-authz"

// Claims are the JWT claims expected by the authorization API.
type Claims struct {
	jwt.RegisteredClaims
	Name           string `json:"name,omitempty"`
	OrganizationID string `json:"org_id"`
	Role           string `json:"role"`
}

// JWTValidator validates EdDSA tokens against a single public key.
type JWTValidator struct {
	key ed25519.PublicKey
}

// NewJWTValidator returns nil for an empty key so middleware fails closed.
func NewJWTValidator(pub ed25519.PublicKey) *JWTValidator {
	if len(pub) != ed25519.PublicKeySize {
		return nil
	}
	return &JWTValidator{key: pub}
}

// Validate parses and validates a JWT token string.
func (v *JWTValidator) Validate(tokenStr string) (*Claims, error) {
	if v == nil || v.key == nil {
		return nil, fmt.Errorf("validator uninitialized")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// SignToken issues an API token. Used by operators and tests.
func SignToken(key ed25519.PrivateKey, subject, name, organizationID, role string, ttl time.Duration) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", errors.New("auth: invalid ed25519 private key")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:           name,
		OrganizationID: organizationID,
		Role:           role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
}

// publicPaths are endpoints that do not require authentication.
var publicPaths = []string{
	"/health",
	"/readiness",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// NewMiddleware creates JWT auth middleware.
// If validator is nil, all non-public requests are rejected (fail closed).
func NewMiddleware(validator *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.WriteUnauthorized(w, "Missing Authorization header")
				return
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || tokenStr == "" {
				api.WriteUnauthorized(w, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}

			if validator == nil {
				api.WriteUnauthorized(w, "Authentication not configured")
				return
			}

			claims, err := validator.Validate(tokenStr)
			if err != nil {
				api.WriteUnauthorized(w, "Invalid or expired token")
				return
			}
			if claims.Subject == "" {
				api.WriteUnauthorized(w, "Token subject is required")
				return
			}
			if claims.OrganizationID == "" {
				api.WriteUnauthorized(w, "Token organization binding is required")
				return
			}
			if claims.Role == "" {
				api.WriteUnauthorized(w, "Token role is required")
				return
			}

			principal := &BasePrincipal{
				ID:             claims.Subject,
				Name:           claims.Name,
				OrganizationID: claims.OrganizationID,
				Role:           claims.Role,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
