package app

import (
	"sort"
	"sync"
	"time"

	"github.com/heavenlabs/voiceroom/internal/core"
	"github.com/heavenlabs/voiceroom/internal/domain"
)

// Listing is one row of the public discovery view.
type Listing struct {
	RoomID           domain.RoomID     `json:"room_id"`
	HostWallet       string            `json:"host_wallet"`
	Visibility       domain.Visibility `json:"visibility"`
	ParticipantCount int               `json:"participant_count"`
}

// DiscoveryIndex is a read-optimized projection of open, publicly
// visible rooms. Actors update it synchronously inside their own
// serialized loops; readers never block on an actor. It may lag a
// moment under load but never lists a closed room, and private rooms
// never enter it at any point of their lifecycle.
type DiscoveryIndex struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Listing
}

func NewDiscoveryIndex() *DiscoveryIndex {
	return &DiscoveryIndex{rooms: make(map[domain.RoomID]*Listing)}
}

func (d *DiscoveryIndex) RoomOpened(room domain.Room) {
	if room.Visibility != domain.VisibilityOpen {
		return
	}
	d.mu.Lock()
	d.rooms[room.ID] = &Listing{
		RoomID:     room.ID,
		HostWallet: room.HostWallet.String(),
		Visibility: room.Visibility,
	}
	d.mu.Unlock()
}

func (d *DiscoveryIndex) ParticipantCount(id domain.RoomID, count int) {
	d.mu.Lock()
	if l, ok := d.rooms[id]; ok {
		l.ParticipantCount = count
	}
	d.mu.Unlock()
}

func (d *DiscoveryIndex) RoomClosed(room domain.Room, _ core.CloseReason, _ time.Time, _ int) {
	d.mu.Lock()
	delete(d.rooms, room.ID)
	d.mu.Unlock()
}

// List returns the current projection, ordered by room id for a stable
// response.
func (d *DiscoveryIndex) List() []Listing {
	d.mu.RLock()
	out := make([]Listing, 0, len(d.rooms))
	for _, l := range d.rooms {
		out = append(out, *l)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
