package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims holds the parsed claims from a verified identity token.
type Claims struct {
	Subject  string
	Issuer   string
	Audience []string
	Name     string
	Email    string
	Picture  string
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// OIDCValidator validates tokens from an OIDC identity provider.
type OIDCValidator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCValidator creates a validator using OIDC discovery on issuerURL.
func NewOIDCValidator(ctx context.Context, issuerURL, audience string) (*OIDCValidator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	})
	return &OIDCValidator{verifier: verifier}, nil
}

// NewJWKSValidator creates a validator from a JWKS URL without discovery.
func NewJWKSValidator(ctx context.Context, jwksURL, issuerURL, audience string) *OIDCValidator {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	verifier := oidc.NewVerifier(issuerURL, keySet, &oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
		SkipIssuerCheck:   issuerURL == "",
	})
	return &OIDCValidator{verifier: verifier}
}

// Validate verifies the token against the provider's signing keys.
func (v *OIDCValidator) Validate(ctx context.Context, token string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %v", ErrInvalidToken, err)
	}

	claims := claimsFromMap(raw)
	claims.Subject = idToken.Subject
	claims.Issuer = idToken.Issuer
	claims.Audience = idToken.Audience
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// HS256Validator validates tokens signed with a shared secret. Intended for
// local development and tests.
type HS256Validator struct {
	secret   []byte
	audience string
}

// NewHS256Validator creates a validator for HS256 tokens. An empty audience
// disables the audience check.
func NewHS256Validator(secret, audience string) (*HS256Validator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	return &HS256Validator{secret: []byte(secret), audience: audience}, nil
}

// Validate verifies a token signed with HS256 and extracts claims.
func (v *HS256Validator) Validate(_ context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	tok, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	raw, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported claim type %T", ErrInvalidToken, tok.Claims)
	}

	claims := claimsFromMap(raw)
	if sub, ok := raw["sub"].(string); ok {
		claims.Subject = sub
	}
	if iss, ok := raw["iss"].(string); ok {
		claims.Issuer = iss
	}
	switch aud := raw["aud"].(type) {
	case string:
		claims.Audience = []string{aud}
	case []interface{}:
		for _, a := range aud {
			if s, ok := a.(string); ok {
				claims.Audience = append(claims.Audience, s)
			}
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// ChainValidator tries each validator in order and returns the first success.
type ChainValidator []TokenValidator

// Validate implements TokenValidator.
func (c ChainValidator) Validate(ctx context.Context, token string) (*Claims, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: no validators configured", ErrInvalidToken)
	}
	var errs []error
	for _, v := range c {
		claims, err := v.Validate(ctx, token)
		if err == nil {
			return claims, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func claimsFromMap(raw map[string]interface{}) *Claims {
	claims := &Claims{}
	if name, ok := raw["name"].(string); ok {
		claims.Name = name
	}
	if email, ok := raw["email"].(string); ok {
		claims.Email = email
	}
	if picture, ok := raw["picture"].(string); ok {
		claims.Picture = picture
	}
	return claims
}
