package domain

import "time"

type (
	RoomID       string
	ConnectionID string
)

type Visibility string

const (
	VisibilityOpen    Visibility = "open"
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility maps the API value to a Visibility; empty means open.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "", string(VisibilityOpen):
		return VisibilityOpen, nil
	case string(VisibilityPrivate):
		return VisibilityPrivate, nil
	}
	return "", ErrBadVisibility
}

type RoomStatus string

const (
	RoomOpen   RoomStatus = "open"
	RoomClosed RoomStatus = "closed"
)

// Room is one ephemeral voice session. HostWallet and Visibility are
// immutable after creation; Status only ever moves open -> closed.
type Room struct {
	ID         RoomID
	HostWallet Wallet
	Visibility Visibility
	Status     RoomStatus
	CreatedAt  time.Time
}

// Connection is one wallet's presence in a room.
//
// LastHeartbeatAt tracks liveness (actual clock time of the last signal).
// MeteredUpTo tracks billing: it advances only by whole debited seconds,
// so sub-second remainders carry over to the next heartbeat instead of
// being dropped.
type Connection struct {
	ID              ConnectionID
	Wallet          Wallet
	RoomID          RoomID
	JoinedAt        time.Time
	LastHeartbeatAt time.Time
	MeteredUpTo     time.Time
	LeftAt          *time.Time
}
