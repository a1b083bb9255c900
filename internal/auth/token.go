package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	dom "userauth/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime is how long an issued access token stays valid.
const TokenLifetime = time.Hour

var ErrInvalidToken = errors.New("invalid token")

// tokenClaims is the JWT payload: sub carries the user id.
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256-signed access tokens.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager returns a TokenManager signing with secret.
func NewTokenManager(secret string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	return &TokenManager{secret: []byte(secret), now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	return &TokenManager{secret: m.secret, now: now}
}

// Issue signs a token for the given user that expires TokenLifetime from now.
func (m *TokenManager) Issue(subjectID int64, email string) (string, error) {
	now := m.now()
	claims := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Verify checks signature and expiry and returns the embedded claims.
// Every failure is reported as ErrInvalidToken.
func (m *TokenManager) Verify(token string) (dom.Claims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return dom.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return dom.Claims{}, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return dom.Claims{}, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}

	out := dom.Claims{SubjectID: id, Email: claims.Email}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
