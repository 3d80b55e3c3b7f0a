// Package auth authenticates HTTP callers with HMAC-signed JWTs and decides
// which DataPuur capabilities they hold.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const contextKeyPrincipal contextKey = "principal"

// Principal is the authenticated caller.
type Principal struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles,omitempty"`
}

// Anonymous is the subject of unauthenticated callers.
const Anonymous = "anonymous"

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// FromContext returns the principal in ctx, or an anonymous one without roles.
func FromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(contextKeyPrincipal).(*Principal); ok && p != nil {
		return p
	}
	return &Principal{Subject: Anonymous}
}

// Options configures the middleware.
type Options struct {
	// Secret signs HS256 tokens.
	Secret []byte
	Issuer string
	// Disabled skips token checks. Callers are identified by X-User-Id
	// (anonymous when absent) and get DefaultRoles.
	Disabled     bool
	DefaultRoles []string
	// Debug includes validation errors in 401 responses.
	Debug bool
}

// Middleware validates bearer tokens and stores the Principal on the request.
func Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Disabled {
				p := &Principal{Subject: Anonymous, Roles: opts.DefaultRoles}
				if userID := r.Header.Get("X-User-Id"); userID != "" {
					p.Subject = userID
				}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				unauthorized(w, "missing or invalid authorization header")
				return
			}
			p, err := ParseToken(strings.TrimPrefix(authHeader, "Bearer "), opts)
			if err != nil {
				if opts.Debug {
					unauthorized(w, err.Error())
				} else {
					unauthorized(w, "unauthorized")
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error": %q}`, msg)
}

// ParseToken validates an HS256 token and extracts its principal. Roles come
// from a "roles" array or a single "role" claim.
func ParseToken(tokenString string, opts Options) (*Principal, error) {
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("jwt secret not configured")
	}
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return opts.Secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}
	p := &Principal{Subject: getStringClaim(claims, "sub")}
	if p.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				p.Roles = append(p.Roles, s)
			}
		}
	}
	if role := getStringClaim(claims, "role"); role != "" {
		p.Roles = append(p.Roles, role)
	}
	return p, nil
}

// IssueToken signs a token for subject with roles, valid for ttl.
func IssueToken(secret []byte, issuer, subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"roles": roles,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
