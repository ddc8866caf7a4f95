package core

import (
	"context"
	"time"

	"github.com/heavenlabs/voiceroom/internal/domain"
)

type CloseReason string

const (
	CloseHostLeft   CloseReason = "host_left"
	CloseHostReaped CloseReason = "host_reaped"
)

// EventSink receives room transitions from an actor. Calls happen
// inside the actor's serialized loop, so implementations must be quick
// and must never call back into the actor.
//
// Every transition is reported here, private rooms included; the
// discovery projection is the layer that hides private rooms.
type EventSink interface {
	RoomOpened(room domain.Room)
	ParticipantCount(id domain.RoomID, count int)
	RoomClosed(room domain.Room, reason CloseReason, closedAt time.Time, peak int)
}

// MultiSink fans one actor's events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) RoomOpened(room domain.Room) {
	for _, s := range m {
		s.RoomOpened(room)
	}
}

func (m MultiSink) ParticipantCount(id domain.RoomID, count int) {
	for _, s := range m {
		s.ParticipantCount(id, count)
	}
}

func (m MultiSink) RoomClosed(room domain.Room, reason CloseReason, closedAt time.Time, peak int) {
	for _, s := range m {
		s.RoomClosed(room, reason, closedAt, peak)
	}
}

// Meter is the slice of the credit ledger an actor needs.
type Meter interface {
	Debit(ctx context.Context, wallet domain.Wallet, seconds int64) error
}
