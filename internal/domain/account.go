package domain

// GrantKind distinguishes purchased/base time from promotional time.
type GrantKind string

const (
	GrantBase  GrantKind = "base"
	GrantBonus GrantKind = "bonus"
)

// Balance is a read-only view of a wallet's credit account.
// Invariant: Remaining = BaseGranted + BonusGranted - Consumed >= 0.
type Balance struct {
	Remaining    int64 `json:"remaining_seconds"`
	BaseGranted  int64 `json:"base_granted_seconds"`
	BonusGranted int64 `json:"bonus_granted_seconds"`
	Consumed     int64 `json:"consumed_seconds"`
}
