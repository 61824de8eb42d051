package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"memory-match/matcherrors"
)

// Identity is who a verified token belongs to. The zero value is anonymous.
type Identity struct {
	UserID string
	Name   string
}

// Verifier checks bearer tokens. With a base URL it verifies EdDSA tokens
// against <base>/.well-known/jwks.json; with a secret it verifies HS256
// tokens; with neither every caller is anonymous.
type Verifier struct {
	issuer  string
	keyfunc jwt.Keyfunc
	methods []string
}

// NewVerifier builds a verifier. baseURL wins over secret when both are set.
func NewVerifier(ctx context.Context, baseURL, secret string) (*Verifier, error) {
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{strings.TrimRight(baseURL, "/") + "/.well-known/jwks.json"})
		if err != nil {
			return nil, err
		}
		return &Verifier{
			issuer:  u.Scheme + "://" + u.Host,
			keyfunc: jwks.Keyfunc,
			methods: []string{"EdDSA"},
		}, nil
	}
	if secret != "" {
		key := []byte(secret)
		return &Verifier{
			keyfunc: func(*jwt.Token) (any, error) { return key, nil },
			methods: []string{"HS256"},
		}, nil
	}
	return &Verifier{}, nil
}

// Enabled reports whether tokens are required.
func (v *Verifier) Enabled() bool {
	return v != nil && v.keyfunc != nil
}

// Verify validates tokenString. When the verifier is disabled it returns the
// anonymous identity.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	if !v.Enabled() {
		return Identity{}, nil
	}
	if tokenString == "" {
		return Identity{}, fmt.Errorf("%w: missing token", matcherrors.ErrUnauthorized)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.Parse(tokenString, v.keyfunc, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", matcherrors.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token claims", matcherrors.ErrUnauthorized)
	}
	id := Identity{UserID: UserIDFromClaims(claims), Name: FirstNameFromClaims(claims)}
	if id.UserID == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", matcherrors.ErrUnauthorized)
	}
	return id, nil
}

// BearerToken extracts the token from an Authorization header, falling back
// to the "token" query parameter for websocket upgrades.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// FirstNameFromClaims returns the first word of the "name" claim, or a fallback.
func FirstNameFromClaims(claims jwt.MapClaims) string {
	name, _ := claims["name"].(string)
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "Player"
	}
	return parts[0]
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}
