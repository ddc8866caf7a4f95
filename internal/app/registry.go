// Package app wires room actors to the outside: the registry routes
// every room operation to the single actor owning that room, and the
// discovery index projects actor events into a listable view.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/heavenlabs/voiceroom/internal/core"
	"github.com/heavenlabs/voiceroom/internal/domain"
)

// NameOracle is the slice of the identity oracle the registry needs
// for the hosting precondition.
type NameOracle interface {
	OwnsHeavenName(ctx context.Context, wallet domain.Wallet) (bool, error)
}

// Registry maps room ids to their actors. At most one actor ever
// exists per room id; closed rooms are evicted and never recreated.
type Registry struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]*core.Actor

	meter   core.Meter
	sink    core.EventSink
	names   NameOracle
	opts    core.Options
	timeout time.Duration
}

func NewRegistry(meter core.Meter, sink core.EventSink, names NameOracle, opts core.Options, dispatchTimeout time.Duration) *Registry {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 5 * time.Second
	}
	return &Registry{
		rooms:   make(map[domain.RoomID]*core.Actor),
		meter:   meter,
		sink:    sink,
		names:   names,
		opts:    opts,
		timeout: dispatchTimeout,
	}
}

// Create checks the hosting precondition, then starts the room's actor
// under a fresh unguessable id. The id doubles as the invite link for
// private rooms.
func (r *Registry) Create(ctx context.Context, host domain.Wallet, visibility domain.Visibility) (domain.Room, error) {
	ok, err := r.names.OwnsHeavenName(ctx, host)
	if err != nil {
		return domain.Room{}, fmt.Errorf("name oracle: %w", err)
	}
	if !ok {
		return domain.Room{}, domain.ErrIdentityRequired
	}

	now := time.Now()
	if r.opts.Now != nil {
		now = r.opts.Now()
	}
	room := domain.Room{
		ID:         domain.RoomID(uuid.NewString()),
		HostWallet: host,
		Visibility: visibility,
		Status:     domain.RoomOpen,
		CreatedAt:  now,
	}

	r.mu.Lock()
	r.rooms[room.ID] = core.StartActor(room, r.meter, r.sink, r.evict, r.opts)
	r.mu.Unlock()
	return room, nil
}

func (r *Registry) Join(ctx context.Context, wallet domain.Wallet, roomID domain.RoomID) (domain.ConnectionID, error) {
	actor, err := r.lookup(roomID)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := actor.Join(ctx, wallet)
	return res.ConnectionID, err
}

func (r *Registry) Heartbeat(ctx context.Context, wallet domain.Wallet, roomID domain.RoomID, connID domain.ConnectionID) (core.HeartbeatResult, error) {
	actor, err := r.lookup(roomID)
	if err != nil {
		return core.HeartbeatResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return actor.Heartbeat(ctx, wallet, connID)
}

func (r *Registry) Leave(ctx context.Context, wallet domain.Wallet, roomID domain.RoomID, connID domain.ConnectionID) (core.LeaveResult, error) {
	actor, err := r.lookup(roomID)
	if err != nil {
		return core.LeaveResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return actor.Leave(ctx, wallet, connID)
}

// Snapshot exposes one room's serialized state; used by tests and the
// feed, never by the hot path.
func (r *Registry) Snapshot(ctx context.Context, roomID domain.RoomID) (core.Snapshot, error) {
	actor, err := r.lookup(roomID)
	if err != nil {
		return core.Snapshot{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return actor.Snapshot(ctx)
}

func (r *Registry) lookup(roomID domain.RoomID) (*core.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	actor, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return actor, nil
}

func (r *Registry) evict(roomID domain.RoomID) {
	r.mu.Lock()
	delete(r.rooms, roomID)
	r.mu.Unlock()
	log.Debug().Str("module", "app.registry").Str("room", string(roomID)).Msg("evicted closed room")
}
