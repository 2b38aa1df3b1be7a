package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "staysmart"

var (
	ErrInvalidLicense = errors.New("license key is invalid")
	ErrExpiredLicense = errors.New("license key has expired")
)

type licenseClaims struct {
	Plan Plan `json:"plan"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 license keys
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("license secret is required")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a key for plan and subject valid for ttl
func (i *Issuer) Issue(plan Plan, subject string, ttl time.Duration) (string, error) {
	if _, ok := planLimits[plan]; !ok {
		return "", fmt.Errorf("unknown plan %q", plan)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("license ttl must be positive, got %s", ttl)
	}

	now := i.now()
	claims := licenseClaims{
		Plan: plan,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign license: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of key and returns its grant
func (i *Issuer) Verify(key string) (Grant, error) {
	var claims licenseClaims
	_, err := jwt.ParseWithClaims(key, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Grant{}, ErrExpiredLicense
		}
		return Grant{}, fmt.Errorf("%w: %v", ErrInvalidLicense, err)
	}

	if _, ok := planLimits[claims.Plan]; !ok {
		return Grant{}, fmt.Errorf("%w: unknown plan %q", ErrInvalidLicense, claims.Plan)
	}

	return Grant{
		Plan:      claims.Plan,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
