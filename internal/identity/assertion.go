package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the profile fields asserted by the identity provider.
type Claims struct {
	Email      string
	Name       string
	Image      *string
	Department *string
	JobTitle   *string
}

// AssertionVerifier turns a raw provider assertion into trusted claims.
type AssertionVerifier interface {
	Verify(raw string) (Claims, error)
}

// ErrInvalidAssertion is returned for any assertion that fails verification.
var ErrInvalidAssertion = errors.New("invalid identity assertion")

type assertionClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	UPN               string `json:"upn"`
	Name              string `json:"name"`
	Picture           string `json:"picture"`
	Department        string `json:"department"`
	JobTitle          string `json:"jobTitle"`
	jwt.RegisteredClaims
}

// JWTVerifier validates signed ID-token style assertions.
type JWTVerifier struct {
	key  any
	opts []jwt.ParserOption
}

// NewHMACVerifier verifies HS256 assertions signed with a shared secret.
func NewHMACVerifier(secret, issuer, audience string) *JWTVerifier {
	return newVerifier([]byte(secret), []string{jwt.SigningMethodHS256.Alg()}, issuer, audience)
}

// NewRSAVerifier verifies RS256 assertions against a provider public key.
func NewRSAVerifier(key *rsa.PublicKey, issuer, audience string) *JWTVerifier {
	return newVerifier(key, []string{jwt.SigningMethodRS256.Alg()}, issuer, audience)
}

// LoadRSAVerifier reads a PEM encoded public key from disk.
func LoadRSAVerifier(path, issuer, audience string) (*JWTVerifier, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assertion public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse assertion public key: %w", err)
	}
	return NewRSAVerifier(key, issuer, audience), nil
}

func newVerifier(key any, methods []string, issuer, audience string) *JWTVerifier {
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTVerifier{key: key, opts: opts}
}

// Verify checks signature, expiry, issuer and audience and extracts profile claims.
func (v *JWTVerifier) Verify(raw string) (Claims, error) {
	var parsed assertionClaims
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &parsed, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, v.opts...)
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	email := firstNonEmpty(parsed.Email, parsed.PreferredUsername, parsed.UPN)
	if email == "" {
		return Claims{}, fmt.Errorf("%w: no email claim", ErrInvalidAssertion)
	}
	return Claims{
		Email:      strings.TrimSpace(email),
		Name:       strings.TrimSpace(parsed.Name),
		Image:      optional(parsed.Picture),
		Department: optional(parsed.Department),
		JobTitle:   optional(parsed.JobTitle),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
