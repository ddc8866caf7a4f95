// Package ledger meters prepaid session time per wallet. Every
// mutation is a single conditional UPDATE so concurrent heartbeats from
// different rooms can never drive a balance negative.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/heavenlabs/voiceroom/internal/domain"
	"github.com/heavenlabs/voiceroom/internal/store"
)

type Ledger struct {
	db           *gorm.DB
	oracle       IdentityOracle
	welcomeBonus int64
	now          func() time.Time
}

func New(db *gorm.DB, oracle IdentityOracle, welcomeBonus int64) *Ledger {
	return &Ledger{db: db, oracle: oracle, welcomeBonus: welcomeBonus, now: time.Now}
}

// GetBalance is a pure read. Unknown wallets report all-zero; the row
// materializes on first grant, not on read.
func (l *Ledger) GetBalance(ctx context.Context, wallet domain.Wallet) (domain.Balance, error) {
	var acct store.CreditAccount
	err := l.db.WithContext(ctx).First(&acct, "wallet = ?", wallet.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Balance{}, nil
	}
	if err != nil {
		return domain.Balance{}, fmt.Errorf("load account: %w", err)
	}
	return balanceOf(acct), nil
}

// Grant adds seconds to the wallet's base or bonus pool. Idempotency of
// the real-world grant event is the caller's responsibility.
func (l *Ledger) Grant(ctx context.Context, wallet domain.Wallet, kind domain.GrantKind, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	if err := l.ensureAccount(ctx, wallet); err != nil {
		return err
	}
	col := "base_granted_seconds"
	if kind == domain.GrantBonus {
		col = "bonus_granted_seconds"
	}
	err := l.db.WithContext(ctx).Model(&store.CreditAccount{}).
		Where("wallet = ?", wallet.String()).
		Update(col, gorm.Expr(col+" + ?", seconds)).Error
	if err != nil {
		return fmt.Errorf("grant: %w", err)
	}
	log.Info().Str("module", "ledger").Str("wallet", wallet.String()).
		Str("kind", string(kind)).Int64("seconds", seconds).Msg("granted credit")
	return nil
}

// Debit consumes seconds if the remaining balance covers them;
// otherwise it clamps the balance to zero and reports insufficiency.
// Callers treat insufficiency as "force end the session", never as a
// silent overspend.
func (l *Ledger) Debit(ctx context.Context, wallet domain.Wallet, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	res := l.db.WithContext(ctx).Model(&store.CreditAccount{}).
		Where("wallet = ? AND base_granted_seconds + bonus_granted_seconds - consumed_seconds >= ?",
			wallet.String(), seconds).
		Update("consumed_seconds", gorm.Expr("consumed_seconds + ?", seconds))
	if res.Error != nil {
		return fmt.Errorf("debit: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	// Take whatever is left so the shortfall is not billable twice.
	err := l.db.WithContext(ctx).Model(&store.CreditAccount{}).
		Where("wallet = ? AND consumed_seconds < base_granted_seconds + bonus_granted_seconds",
			wallet.String()).
		Update("consumed_seconds", gorm.Expr("base_granted_seconds + bonus_granted_seconds")).Error
	if err != nil {
		return fmt.Errorf("debit clamp: %w", err)
	}
	return domain.ErrInsufficientBalance
}

// RequireVerifiedIdentity consults the identity oracle and, on the
// first positive observation for a wallet, grants the one-time welcome
// bonus. Returns the seconds granted by this call (0 if the wallet was
// already verified).
func (l *Ledger) RequireVerifiedIdentity(ctx context.Context, wallet domain.Wallet) (int64, error) {
	var acct store.CreditAccount
	err := l.db.WithContext(ctx).First(&acct, "wallet = ?", wallet.String()).Error
	if err == nil && acct.VerifiedAt != nil {
		return 0, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("load account: %w", err)
	}

	ok, err := l.oracle.VerifiedOnCelo(ctx, wallet)
	if err != nil {
		return 0, fmt.Errorf("identity oracle: %w", err)
	}
	if !ok {
		return 0, domain.ErrNotVerified
	}

	if err := l.ensureAccount(ctx, wallet); err != nil {
		return 0, err
	}
	res := l.db.WithContext(ctx).Model(&store.CreditAccount{}).
		Where("wallet = ? AND verified_at IS NULL", wallet.String()).
		Update("verified_at", l.now())
	if res.Error != nil {
		return 0, fmt.Errorf("mark verified: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// A concurrent call already claimed the one-time bonus.
		return 0, nil
	}
	if err := l.Grant(ctx, wallet, domain.GrantBonus, l.welcomeBonus); err != nil {
		return 0, err
	}
	return l.welcomeBonus, nil
}

func (l *Ledger) ensureAccount(ctx context.Context, wallet domain.Wallet) error {
	acct := store.CreditAccount{Wallet: wallet.String()}
	if err := l.db.WithContext(ctx).FirstOrCreate(&acct, "wallet = ?", wallet.String()).Error; err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	return nil
}

func balanceOf(acct store.CreditAccount) domain.Balance {
	return domain.Balance{
		Remaining:    acct.BaseGrantedSeconds + acct.BonusGrantedSeconds - acct.ConsumedSeconds,
		BaseGranted:  acct.BaseGrantedSeconds,
		BonusGranted: acct.BonusGrantedSeconds,
		Consumed:     acct.ConsumedSeconds,
	}
}
