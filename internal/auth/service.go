// Package auth implements the wallet challenge/response flow and the
// stateless bearer tokens it mints. Only nonce issuance and consumption
// touch storage; token validation is pure.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/heavenlabs/voiceroom/internal/domain"
	"github.com/heavenlabs/voiceroom/internal/store"
)

type Service struct {
	db       *gorm.DB
	tokens   *TokenMinter
	nonceTTL time.Duration
	now      func() time.Time
}

func NewService(db *gorm.DB, tokens *TokenMinter, nonceTTL time.Duration) *Service {
	return &Service{db: db, tokens: tokens, nonceTTL: nonceTTL, now: time.Now}
}

// IssueChallenge stores and returns a fresh one-time nonce. Each call
// yields an independent nonce; stale ones simply expire.
func (s *Service) IssueChallenge(ctx context.Context, wallet domain.Wallet) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("nonce entropy: %w", err)
	}
	nonce := hex.EncodeToString(buf)
	now := s.now()
	ch := store.Challenge{
		Nonce:     nonce,
		Wallet:    wallet.String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.nonceTTL),
	}
	if err := s.db.WithContext(ctx).Create(&ch).Error; err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}
	log.Debug().Str("module", "auth").Str("wallet", wallet.String()).Msg("challenge issued")
	return nonce, nil
}

// Verify checks the signature over the nonce text and, only if it
// recovers to the wallet, consumes the nonce and mints a bearer token.
// A bad signature leaves the nonce untouched so the client can retry
// with a corrected signature; a consumed or expired nonce fails the
// same way regardless of signature validity.
func (s *Service) Verify(ctx context.Context, wallet domain.Wallet, signature, nonce string) (string, error) {
	var ch store.Challenge
	err := s.db.WithContext(ctx).
		Where("nonce = ? AND wallet = ?", nonce, wallet.String()).
		First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrNonceExpiredOrReused
	}
	if err != nil {
		return "", fmt.Errorf("load challenge: %w", err)
	}
	now := s.now()
	if ch.ConsumedAt != nil || now.After(ch.ExpiresAt) {
		return "", domain.ErrNonceExpiredOrReused
	}

	// Signature before consumption: this ordering is what keeps the
	// nonce reusable after a client-side signing mistake.
	signer, err := RecoverSigner(nonce, signature)
	if err != nil || signer != wallet {
		return "", domain.ErrInvalidSignature
	}

	res := s.db.WithContext(ctx).Model(&store.Challenge{}).
		Where("nonce = ? AND consumed_at IS NULL", nonce).
		Update("consumed_at", now)
	if res.Error != nil {
		return "", fmt.Errorf("consume challenge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another verify won the nonce between our read and this update.
		return "", domain.ErrNonceExpiredOrReused
	}

	token, err := s.tokens.Mint(wallet)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	log.Info().Str("module", "auth").Str("wallet", wallet.String()).Msg("wallet authenticated")
	return token, nil
}

// ValidateToken checks the token tag and expiry. No storage lookup.
func (s *Service) ValidateToken(token string) (domain.Wallet, error) {
	return s.tokens.Validate(token)
}
