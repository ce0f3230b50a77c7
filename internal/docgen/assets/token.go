package assets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthTokenProvider supplies the bearer token sent to the asset server. An
// empty token with a nil error means no token is available.
type AuthTokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

type tokenCtxKey struct{}

// ContextWithToken stores a caller's bearer token on the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, strings.TrimSpace(token))
}

// TokenFromContext returns the token stored by ContextWithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenCtxKey{}).(string)
	return token
}

// ContextToken forwards the token of the request being served.
type ContextToken struct{}

func (ContextToken) Token(ctx context.Context) (string, error) {
	return TokenFromContext(ctx), nil
}

// Chain returns the first non-empty token from the providers, in order.
func Chain(providers ...AuthTokenProvider) AuthTokenProvider {
	return chain(providers)
}

type chain []AuthTokenProvider

func (c chain) Token(ctx context.Context) (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		token, err := p.Token(ctx)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return "", nil
}

// ServiceClaims identifies background callers such as the export worker.
type ServiceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// ServiceTokenProvider mints short-lived HS256 service tokens.
type ServiceTokenProvider struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewServiceTokenProvider constructs a provider. ttl defaults to five minutes.
func NewServiceTokenProvider(secret, subject string, ttl time.Duration) (*ServiceTokenProvider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("assets: service token secret required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ServiceTokenProvider{secret: []byte(secret), subject: subject, ttl: ttl, now: time.Now}, nil
}

// WithNow overrides the clock for deterministic tests.
func (p *ServiceTokenProvider) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

func (p *ServiceTokenProvider) Token(context.Context) (string, error) {
	now := p.now()
	claims := ServiceClaims{
		Scope: "assets:read",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.subject,
			Issuer:    "quotedoc",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
