package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/heavenlabs/voiceroom/internal/core"
	"github.com/heavenlabs/voiceroom/internal/domain"
)

// MediaNotifier informs the external audio platform about room
// lifecycle so it can allocate and tear down channels. The core only
// pushes facts; it never touches media itself. With no webhook URL
// configured the events are just logged.
type MediaNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewMediaNotifier(webhookURL string) *MediaNotifier {
	return &MediaNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *MediaNotifier) RoomOpened(room domain.Room) {
	n.post(map[string]any{
		"event":      "room_opened",
		"room_id":    room.ID,
		"host":       room.HostWallet.String(),
		"visibility": room.Visibility,
	})
}

func (n *MediaNotifier) ParticipantCount(domain.RoomID, int) {}

func (n *MediaNotifier) RoomClosed(room domain.Room, reason core.CloseReason, closedAt time.Time, _ int) {
	n.post(map[string]any{
		"event":     "room_closed",
		"room_id":   room.ID,
		"reason":    reason,
		"closed_at": closedAt.Unix(),
	})
}

// post is fire-and-forget off the actor goroutine: the actor loop must
// not stall on a slow media platform.
func (n *MediaNotifier) post(payload map[string]any) {
	if n.webhookURL == "" {
		log.Debug().Str("module", "app.notifier").Interface("payload", payload).Msg("media event")
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	go func() {
		resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Warn().Err(err).Str("module", "app.notifier").Msg("media webhook failed")
			return
		}
		resp.Body.Close()
	}()
}
