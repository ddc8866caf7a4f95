package app

import (
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/heavenlabs/voiceroom/internal/core"
	"github.com/heavenlabs/voiceroom/internal/domain"
	"github.com/heavenlabs/voiceroom/internal/store"
)

// Archiver persists one RoomRecord when a room reaches its terminal
// state. Live room state never touches the database.
type Archiver struct {
	db *gorm.DB
}

func NewArchiver(db *gorm.DB) *Archiver {
	return &Archiver{db: db}
}

func (a *Archiver) RoomOpened(domain.Room) {}

func (a *Archiver) ParticipantCount(domain.RoomID, int) {}

func (a *Archiver) RoomClosed(room domain.Room, reason core.CloseReason, closedAt time.Time, peak int) {
	rec := store.RoomRecord{
		RoomID:      string(room.ID),
		HostWallet:  room.HostWallet.String(),
		Visibility:  string(room.Visibility),
		CreatedAt:   room.CreatedAt,
		ClosedAt:    closedAt,
		CloseReason: string(reason),
		PeakCount:   peak,
	}
	if err := a.db.Create(&rec).Error; err != nil {
		log.Error().Err(err).Str("module", "app.archive").
			Str("room", string(room.ID)).Msg("failed to archive closed room")
	}
}
