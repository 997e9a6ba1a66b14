package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"task-api/api"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the caller resolved from a verified token.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

type IssuerConfig struct {
	Key      []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Key) == 0 {
		return nil, errors.New("signing key is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		key:      cfg.Key,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      now,
	}, nil
}

// Issue mints a token for id that expires after the configured TTL.
func (i *Issuer) Issue(id Identity) (string, error) {
	if id.UserID == uuid.Nil {
		return "", errors.New("cannot issue a token without a user id")
	}
	now := i.now()
	claims := api.Claims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry with no clock
// skew allowance. Every failure is reported as ErrInvalidToken.
func (i *Issuer) Verify(token string) (Identity, error) {
	var claims api.Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return Identity{UserID: userID, Email: claims.Email, Role: claims.Role}, nil
}
