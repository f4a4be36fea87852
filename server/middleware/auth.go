package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/lifecycle/errors"
)

// Claims are the registered claims carried by admin tokens.
type Claims = gojwt.RegisteredClaims

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// AuthConfig configures the bearer-token authentication middleware.
type AuthConfig struct {
	Validator TokenValidator
	// SkipPaths bypass authentication. Probes are always skipped.
	SkipPaths []string
}

type claimsKey struct{}

// HS256 returns a validator for tokens signed with secret. Expiry is enforced
// when the token carries one.
func HS256(secret []byte) TokenValidator {
	parser := gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithLeeway(30*time.Second),
	)
	keyFunc := func(token *gojwt.Token) (interface{}, error) {
		if token.Method.Alg() != gojwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return secret, nil
	}
	return func(token string) (*Claims, error) {
		claims := &Claims{}
		parsed, err := parser.ParseWithClaims(token, claims, keyFunc)
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if !parsed.Valid {
			return nil, fmt.Errorf("invalid token")
		}
		return claims, nil
	}
}

// IssueHS256 signs a token for subject, expiring after ttl. A zero ttl issues
// a token without expiry.
func IssueHS256(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject:  subject,
		IssuedAt: gojwt.NewNumericDate(now),
	}
	if ttl != 0 {
		claims.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Auth returns middleware that requires a valid "Authorization: Bearer"
// token. Validated claims are available through ClaimsFromContext.
func Auth(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || IsProbe(r.URL.Path) || skipped(r.URL.Path, cfg.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				writeError(w, errors.Unauthorized("Authorization header with a bearer token is required."))
				return
			}
			claims, err := cfg.Validator(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin", error="invalid_token"`)
				writeError(w, errors.Unauthorized("Invalid token.").WithCause(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// ClaimsFromContext returns the claims stored by Auth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

func skipped(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
