// Package identity verifies caller tokens issued by the external identity
// provider and carries the verified identity through context.Context.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("identity: missing token")
	ErrInvalidToken = errors.New("identity: invalid token")
	ErrNoKey        = errors.New("identity: no verification key configured")
)

// Identity — проверенный субъект внешнего провайдера и его профильные claims.
type Identity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	ImageURL  string
}

type Claims struct {
	Email     string `json:"email,omitempty"`
	GivenName string `json:"given_name,omitempty"`
	Family    string `json:"family_name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Verifier проверяет подпись (HS256 или RS256), issuer и audience.
type Verifier struct {
	hmacSecret []byte
	rsaKey     any
	issuer     string
	audience   string
}

type Options struct {
	Secret       string
	PublicKeyPEM string
	Issuer       string
	Audience     string
}

func NewVerifier(opts Options) (*Verifier, error) {
	v := &Verifier{issuer: opts.Issuer, audience: opts.Audience}
	if opts.Secret != "" {
		v.hmacSecret = []byte(opts.Secret)
	}
	if opts.PublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(opts.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("identity: parse public key: %w", err)
		}
		v.rsaKey = key
	}
	return v, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.hmacSecret == nil {
			return nil, ErrNoKey
		}
		return v.hmacSecret, nil
	case *jwt.SigningMethodRSA:
		if v.rsaKey == nil {
			return nil, ErrNoKey
		}
		return v.rsaKey, nil
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

// Verify parses a raw token and returns the identity it asserts.
func (v *Verifier) Verify(raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "RS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(raw, claims, v.keyFunc, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return &Identity{
		Subject:   claims.Subject,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.Family,
		ImageURL:  claims.Picture,
	}, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller identity, or nil when the request is anonymous.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
