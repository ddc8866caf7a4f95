package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heavenlabs/voiceroom/internal/domain"
)

// TokenMinter mints and validates HS256 bearer tokens with the wallet
// as subject. No server-side session state backs them.
type TokenMinter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenMinter(secret string, ttl time.Duration) *TokenMinter {
	return &TokenMinter{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenMinter) Mint(wallet domain.Wallet) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   wallet.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenMinter) Validate(token string) (domain.Wallet, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", domain.ErrTokenIntegrity
	default:
		return "", domain.ErrTokenMalformed
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", domain.ErrTokenMalformed
	}
	wallet, err := domain.ParseWallet(claims.Subject)
	if err != nil {
		return "", domain.ErrTokenMalformed
	}
	return wallet, nil
}
