// Package core holds the room state machine. Each room is owned by
// exactly one actor goroutine that processes operations one at a time
// in arrival order; the struct behind it is never shared.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/heavenlabs/voiceroom/internal/domain"
)

type Options struct {
	QueueSize      int
	LivenessWindow time.Duration
	// Now is a clock hook for tests; defaults to time.Now.
	Now func() time.Time
}

func (o *Options) fillDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.LivenessWindow <= 0 {
		o.LivenessWindow = 45 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type JoinResult struct {
	ConnectionID domain.ConnectionID
}

type HeartbeatResult struct {
	// EndedOutOfCredit is set when the debit came up short and the
	// connection was force-removed. The heartbeat itself still
	// succeeds; the caller reacts to the distinct signal.
	EndedOutOfCredit bool
}

type LeaveResult struct {
	Closed bool
}

type Snapshot struct {
	Room        domain.Room
	Connections []domain.Connection
}

type msgKind int

const (
	msgJoin msgKind = iota
	msgHeartbeat
	msgLeave
	msgSnapshot
)

type message struct {
	kind   msgKind
	wallet domain.Wallet
	connID domain.ConnectionID
	reply  chan result
}

type result struct {
	connID domain.ConnectionID
	closed bool
	ended  bool
	snap   Snapshot
	err    error
}

// Actor owns one room. All fields below mailbox/done are touched only
// by the run goroutine.
type Actor struct {
	mailbox chan message
	done    chan struct{}
	// meta is the immutable creation-time view, safe to read from any
	// goroutine (the loop-owned room copy is not).
	meta domain.Room

	room     domain.Room
	conns    map[domain.ConnectionID]*domain.Connection
	hostSeen bool
	peak     int
	meter    Meter
	sink     EventSink
	onClosed func(domain.RoomID)
	opts     Options
}

// StartActor creates the room already open with zero connections,
// reports RoomOpened synchronously, and spawns the run loop. onClosed
// fires once, right after the room reaches its terminal state.
func StartActor(room domain.Room, meter Meter, sink EventSink, onClosed func(domain.RoomID), opts Options) *Actor {
	opts.fillDefaults()
	room.Status = domain.RoomOpen
	a := &Actor{
		mailbox:  make(chan message, opts.QueueSize),
		done:     make(chan struct{}),
		meta:     room,
		room:     room,
		conns:    make(map[domain.ConnectionID]*domain.Connection),
		meter:    meter,
		sink:     sink,
		onClosed: onClosed,
		opts:     opts,
	}
	a.sink.RoomOpened(room)
	go a.run()
	log.Info().Str("module", "core.actor").Str("room", string(room.ID)).
		Str("host", room.HostWallet.String()).Str("visibility", string(room.Visibility)).
		Msg("room opened")
	return a
}

func (a *Actor) Room() domain.Room { return a.meta }

func (a *Actor) Join(ctx context.Context, wallet domain.Wallet) (JoinResult, error) {
	r, err := a.send(ctx, message{kind: msgJoin, wallet: wallet})
	return JoinResult{ConnectionID: r.connID}, err
}

func (a *Actor) Heartbeat(ctx context.Context, wallet domain.Wallet, connID domain.ConnectionID) (HeartbeatResult, error) {
	r, err := a.send(ctx, message{kind: msgHeartbeat, wallet: wallet, connID: connID})
	return HeartbeatResult{EndedOutOfCredit: r.ended}, err
}

func (a *Actor) Leave(ctx context.Context, wallet domain.Wallet, connID domain.ConnectionID) (LeaveResult, error) {
	r, err := a.send(ctx, message{kind: msgLeave, wallet: wallet, connID: connID})
	return LeaveResult{Closed: r.closed}, err
}

func (a *Actor) Snapshot(ctx context.Context) (Snapshot, error) {
	r, err := a.send(ctx, message{kind: msgSnapshot})
	return r.snap, err
}

// send enqueues an operation and waits for the serialized loop to
// answer. A full mailbox surfaces as the caller's context deadline, a
// closed room as ErrRoomNotFound.
func (a *Actor) send(ctx context.Context, m message) (result, error) {
	m.reply = make(chan result, 1)
	select {
	case a.mailbox <- m:
	case <-a.done:
		return result{}, domain.ErrRoomNotFound
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case r := <-m.reply:
		return r, r.err
	case <-a.done:
		// Replies for processed messages are buffered before done is
		// closed, so a missing reply here means the message was never
		// (and will never be) handled.
		select {
		case r := <-m.reply:
			return r, r.err
		default:
			return result{}, domain.ErrRoomNotFound
		}
	}
}

func (a *Actor) run() {
	tick := a.opts.LivenessWindow / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	reaper := time.NewTicker(tick)
	defer reaper.Stop()

	for a.room.Status == domain.RoomOpen {
		select {
		case m := <-a.mailbox:
			m.reply <- a.handle(m)
		case <-reaper.C:
			a.reap()
		}
	}

	close(a.done)
	if a.onClosed != nil {
		a.onClosed(a.room.ID)
	}
	// Answer anything that squeezed into the mailbox before done closed.
	for {
		select {
		case m := <-a.mailbox:
			m.reply <- result{err: domain.ErrRoomNotFound}
		default:
			return
		}
	}
}

func (a *Actor) handle(m message) result {
	switch m.kind {
	case msgJoin:
		return a.join(m.wallet)
	case msgHeartbeat:
		return a.heartbeat(m.wallet, m.connID)
	case msgLeave:
		return a.leave(m.wallet, m.connID)
	case msgSnapshot:
		return result{snap: a.snapshot()}
	}
	return result{err: errors.New("unknown message kind")}
}

func (a *Actor) join(wallet domain.Wallet) result {
	if wallet == a.room.HostWallet && a.hostConnection() != nil {
		return result{err: domain.ErrHostAlreadyJoined}
	}
	now := a.opts.Now()
	conn := &domain.Connection{
		ID:              domain.ConnectionID(uuid.NewString()),
		Wallet:          wallet,
		RoomID:          a.room.ID,
		JoinedAt:        now,
		LastHeartbeatAt: now,
		MeteredUpTo:     now,
	}
	a.conns[conn.ID] = conn
	if wallet == a.room.HostWallet {
		a.hostSeen = true
	}
	if len(a.conns) > a.peak {
		a.peak = len(a.conns)
	}
	a.sink.ParticipantCount(a.room.ID, len(a.conns))
	log.Info().Str("module", "core.actor").Str("room", string(a.room.ID)).
		Str("wallet", wallet.String()).Int("count", len(a.conns)).Msg("joined")
	return result{connID: conn.ID}
}

func (a *Actor) heartbeat(wallet domain.Wallet, connID domain.ConnectionID) result {
	conn, ok := a.conns[connID]
	if !ok || conn.Wallet != wallet {
		return result{err: domain.ErrConnectionStale}
	}
	now := a.opts.Now()
	conn.LastHeartbeatAt = now
	if err := a.debitElapsed(conn, now); err != nil {
		// Out of credit: force-remove as if the connection left, but
		// still acknowledge the heartbeat with the distinct signal.
		closed := a.removeConnection(conn, now)
		log.Info().Str("module", "core.actor").Str("room", string(a.room.ID)).
			Str("wallet", wallet.String()).Msg("session ended: out of credit")
		return result{ended: true, closed: closed}
	}
	return result{}
}

func (a *Actor) leave(wallet domain.Wallet, connID domain.ConnectionID) result {
	conn, ok := a.conns[connID]
	if !ok || conn.Wallet != wallet {
		return result{err: domain.ErrConnectionStale}
	}
	now := a.opts.Now()
	closed := a.removeConnection(conn, now)
	return result{closed: closed}
}

// removeConnection finalizes one connection (final debit, left_at) and,
// when it belonged to the host, closes the whole room. Reports whether
// the room closed.
func (a *Actor) removeConnection(conn *domain.Connection, now time.Time) bool {
	a.finalize(conn, now)
	delete(a.conns, conn.ID)
	if conn.Wallet == a.room.HostWallet {
		a.closeRoom(CloseHostLeft, now)
		return true
	}
	a.sink.ParticipantCount(a.room.ID, len(a.conns))
	log.Info().Str("module", "core.actor").Str("room", string(a.room.ID)).
		Str("wallet", conn.Wallet.String()).Int("count", len(a.conns)).Msg("left")
	return false
}

// closeRoom is the cascading close: every remaining connection is
// finalized synchronously inside this same serialized operation, so no
// Join can interleave with the fan-out.
func (a *Actor) closeRoom(reason CloseReason, now time.Time) {
	for id, conn := range a.conns {
		a.finalize(conn, now)
		delete(a.conns, id)
	}
	a.room.Status = domain.RoomClosed
	a.sink.RoomClosed(a.room, reason, now, a.peak)
	log.Info().Str("module", "core.actor").Str("room", string(a.room.ID)).
		Str("reason", string(reason)).Msg("room closed")
}

// finalize applies the last debit and stamps left_at. Insufficiency at
// this point is expected (the session is over either way).
func (a *Actor) finalize(conn *domain.Connection, now time.Time) {
	if err := a.debitElapsed(conn, now); err != nil && !errors.Is(err, domain.ErrInsufficientBalance) {
		log.Error().Err(err).Str("module", "core.actor").Str("room", string(a.room.ID)).
			Str("wallet", conn.Wallet.String()).Msg("final debit failed")
	}
	left := now
	conn.LeftAt = &left
}

// debitElapsed charges the whole seconds accrued since the connection's
// metering mark and advances the mark by exactly that much, so
// fractions carry over. Zero elapsed time debits nothing.
func (a *Actor) debitElapsed(conn *domain.Connection, now time.Time) error {
	elapsed := int64(now.Sub(conn.MeteredUpTo) / time.Second)
	if elapsed <= 0 {
		return nil
	}
	if err := a.meter.Debit(context.Background(), conn.Wallet, elapsed); err != nil {
		return err
	}
	conn.MeteredUpTo = conn.MeteredUpTo.Add(time.Duration(elapsed) * time.Second)
	return nil
}

// reap treats silent connections as gone. Host silence closes the room
// exactly like a host leave. Runs on the same goroutine as every other
// operation, so it cannot race a concurrent Leave.
func (a *Actor) reap() {
	now := a.opts.Now()
	// A host that created the room but never connected within the
	// liveness window counts as gone too; otherwise the room would sit
	// in discovery with nobody hosting it.
	if !a.hostSeen && now.Sub(a.room.CreatedAt) > a.opts.LivenessWindow {
		a.closeRoom(CloseHostReaped, now)
		return
	}
	for _, conn := range a.conns {
		if now.Sub(conn.LastHeartbeatAt) <= a.opts.LivenessWindow {
			continue
		}
		log.Info().Str("module", "core.actor").Str("room", string(a.room.ID)).
			Str("wallet", conn.Wallet.String()).Msg("reaping silent connection")
		if conn.Wallet == a.room.HostWallet {
			a.finalize(conn, now)
			delete(a.conns, conn.ID)
			a.closeRoom(CloseHostReaped, now)
			return
		}
		a.finalize(conn, now)
		delete(a.conns, conn.ID)
		a.sink.ParticipantCount(a.room.ID, len(a.conns))
	}
}

func (a *Actor) hostConnection() *domain.Connection {
	for _, conn := range a.conns {
		if conn.Wallet == a.room.HostWallet {
			return conn
		}
	}
	return nil
}

func (a *Actor) snapshot() Snapshot {
	out := Snapshot{Room: a.room}
	for _, conn := range a.conns {
		out.Connections = append(out.Connections, *conn)
	}
	return out
}
