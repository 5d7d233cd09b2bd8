// Package auth verifies Supabase access tokens and carries the signed-in
// principal through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Dilbarpun07/GBFC-website/internal/api/respond"
)

// DevPrincipalHeader names the principal when no JWT secret is configured.
const DevPrincipalHeader = "X-Principal-ID"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the subset of a Supabase access token the API reads. Subject is
// the user id and becomes Team.ownerId.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Principal is the caller identity attached to a request.
type Principal struct {
	ID    string
	Email string
	// Token is the raw bearer token, forwarded to the store on writes.
	Token string
}

type ctxKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal set by Middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Verifier checks HS256 tokens signed with the project JWT secret. With an
// empty secret it runs in dev mode and trusts DevPrincipalHeader.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string, leeway time.Duration) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}
}

// DevMode reports whether tokens are not being verified.
func (v *Verifier) DevMode() bool { return len(v.secret) == 0 }

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate resolves the principal for r.
func (v *Verifier) Authenticate(r *http.Request) (Principal, error) {
	token := BearerToken(r)
	if token == "" {
		// Browsers cannot set headers on websocket upgrades.
		token = r.URL.Query().Get("access_token")
	}
	if v.DevMode() {
		id := strings.TrimSpace(r.Header.Get(DevPrincipalHeader))
		if id == "" {
			id = strings.TrimSpace(r.URL.Query().Get("principal_id"))
		}
		if id == "" {
			return Principal{}, ErrMissingToken
		}
		return Principal{ID: id, Token: token}, nil
	}
	if token == "" {
		return Principal{}, ErrMissingToken
	}
	claims, err := v.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: claims.Subject, Email: claims.Email, Token: token}, nil
}

// Middleware rejects unauthenticated requests with 401 and stores the
// principal in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := v.Authenticate(r)
		if err != nil {
			msg := "Invalid access token"
			if errors.Is(err, ErrMissingToken) {
				msg = "Missing access token"
			}
			respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
