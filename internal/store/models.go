// Package store owns the relational models and database setup. All
// mutations on these rows happen through single conditional statements
// in the owning services, never read-then-write in application code.
package store

import "time"

// CreditAccount is a wallet's prepaid session time. Rows materialize on
// first grant and are never deleted.
type CreditAccount struct {
	Wallet              string `gorm:"primaryKey"`
	BaseGrantedSeconds  int64  `gorm:"not null;default:0"`
	BonusGrantedSeconds int64  `gorm:"not null;default:0"`
	ConsumedSeconds     int64  `gorm:"not null;default:0"`
	VerifiedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// Challenge is a one-time login nonce. ConsumedAt flips exactly once,
// via a conditional update, when a signature over the nonce verifies.
type Challenge struct {
	Nonce      string `gorm:"primaryKey"`
	Wallet     string `gorm:"index;not null"`
	IssuedAt   time.Time
	ExpiresAt  time.Time `gorm:"index"`
	ConsumedAt *time.Time
}

func (Challenge) TableName() string { return "challenges" }

// RoomRecord is the durable history of a closed room. Live room state
// never touches the database; the owning actor writes one record when
// the room reaches its terminal state.
type RoomRecord struct {
	RoomID      string `gorm:"primaryKey"`
	HostWallet  string `gorm:"index;not null"`
	Visibility  string `gorm:"not null"`
	CreatedAt   time.Time
	ClosedAt    time.Time
	CloseReason string
	PeakCount   int
}

func (RoomRecord) TableName() string { return "room_records" }
