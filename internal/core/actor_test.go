package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heavenlabs/voiceroom/internal/domain"
)

const (
	hostWallet  = domain.Wallet("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	guestWallet = domain.Wallet("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	thirdWallet = domain.Wallet("0xcccccccccccccccccccccccccccccccccccccccc")
)

// fakeClock is a mutex-guarded clock the actor goroutine can read while
// the test advances it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeMeter records debits per wallet and reports insufficiency once
// the configured balance is exhausted.
type fakeMeter struct {
	mu       sync.Mutex
	balances map[domain.Wallet]int64
	debited  map[domain.Wallet]int64
}

func newFakeMeter() *fakeMeter {
	return &fakeMeter{
		balances: make(map[domain.Wallet]int64),
		debited:  make(map[domain.Wallet]int64),
	}
}

func (m *fakeMeter) grant(w domain.Wallet, seconds int64) {
	m.mu.Lock()
	m.balances[w] += seconds
	m.mu.Unlock()
}

func (m *fakeMeter) total(w domain.Wallet) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debited[w]
}

func (m *fakeMeter) Debit(_ context.Context, w domain.Wallet, seconds int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[w] < seconds {
		m.debited[w] += m.balances[w]
		m.balances[w] = 0
		return domain.ErrInsufficientBalance
	}
	m.balances[w] -= seconds
	m.debited[w] += seconds
	return nil
}

// recordingSink captures events; safe for the actor goroutine + test.
type recordingSink struct {
	mu     sync.Mutex
	opened []domain.Room
	counts []int
	closed []CloseReason
}

func (s *recordingSink) RoomOpened(room domain.Room) {
	s.mu.Lock()
	s.opened = append(s.opened, room)
	s.mu.Unlock()
}

func (s *recordingSink) ParticipantCount(_ domain.RoomID, count int) {
	s.mu.Lock()
	s.counts = append(s.counts, count)
	s.mu.Unlock()
}

func (s *recordingSink) RoomClosed(_ domain.Room, reason CloseReason, _ time.Time, _ int) {
	s.mu.Lock()
	s.closed = append(s.closed, reason)
	s.mu.Unlock()
}

func (s *recordingSink) closeReasons() []CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CloseReason(nil), s.closed...)
}

func (s *recordingSink) lastCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.counts) == 0 {
		return -1
	}
	return s.counts[len(s.counts)-1]
}

type actorFixture struct {
	actor  *Actor
	meter  *fakeMeter
	sink   *recordingSink
	clock  *fakeClock
	closed chan domain.RoomID
}

func startTestActor(t *testing.T, window time.Duration) *actorFixture {
	t.Helper()
	f := &actorFixture{
		meter:  newFakeMeter(),
		sink:   &recordingSink{},
		clock:  newFakeClock(),
		closed: make(chan domain.RoomID, 1),
	}
	f.meter.grant(hostWallet, 1_000_000)
	f.meter.grant(guestWallet, 1_000_000)
	room := domain.Room{
		ID:         "room-1",
		HostWallet: hostWallet,
		Visibility: domain.VisibilityOpen,
		CreatedAt:  f.clock.Now(),
	}
	f.actor = StartActor(room, f.meter, f.sink, func(id domain.RoomID) { f.closed <- id }, Options{
		LivenessWindow: window,
		Now:            f.clock.Now,
	})
	return f
}

func (f *actorFixture) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-f.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("room did not close")
	}
}

func TestJoinTracksParticipantCount(t *testing.T) {
	f := startTestActor(t, time.Minute)
	ctx := context.Background()

	require.Len(t, f.sink.opened, 1)

	_, err := f.actor.Join(ctx, hostWallet)
	require.NoError(t, err)
	assert.Equal(t, 1, f.sink.lastCount())

	_, err = f.actor.Join(ctx, guestWallet)
	require.NoError(t, err)
	assert.Equal(t, 2, f.sink.lastCount())

	// The host wallet cannot hold a second live connection.
	_, err = f.actor.Join(ctx, hostWallet)
	assert.ErrorIs(t, err, domain.ErrHostAlreadyJoined)
}

func TestHostLeaveClosesRoomAndCascades(t *testing.T) {
	f := startTestActor(t, time.Minute)
	ctx := context.Background()

	host, err := f.actor.Join(ctx, hostWallet)
	require.NoError(t, err)
	guest, err := f.actor.Join(ctx, guestWallet)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)

	res, err := f.actor.Leave(ctx, hostWallet, host.ConnectionID)
	require.NoError(t, err)
	assert.True(t, res.Closed)
	f.waitClosed(t)

	assert.Equal(t, []CloseReason{CloseHostLeft}, f.sink.closeReasons())

	// The cascade applied the guest's final debit within the same
	// serialized close.
	assert.Equal(t, int64(10), f.meter.total(guestWallet))
	assert.Equal(t, int64(10), f.meter.total(hostWallet))

	// Every subsequent operation on the closed room fails.
	_, err = f.actor.Heartbeat(ctx, guestWallet, guest.ConnectionID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = f.actor.Join(ctx, thirdWallet)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestNonHostLeaveKeepsRoomOpen(t *testing.T) {
	f := startTestActor(t, time.Minute)
	ctx := context.Background()

	_, err := f.actor.Join(ctx, hostWallet)
	require.NoError(t, err)
	guest, err := f.actor.Join(ctx, guestWallet)
	require.NoError(t, err)

	res, err := f.actor.Leave(ctx, guestWallet, guest.ConnectionID)
	require.NoError(t, err)
	assert.False(t, res.Closed)
	assert.Equal(t, 1, f.sink.lastCount())

	// Still open: a new join works.
	_, err = f.actor.Join(ctx, thirdWallet)
	assert.NoError(t, err)
}

func TestHeartbeatDebitsElapsedWholeSeconds(t *testing.T) {
	f := startTestActor(t, time.Minute)
	ctx := context.Background()

	conn, err := f.actor.Join(ctx, guestWallet)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	res, err := f.actor.Heartbeat(ctx, guestWallet, conn.ConnectionID)
	require.NoError(t, err)
	assert.False(t, res.EndedOutOfCredit)
	assert.Equal(t, int64(10), f.meter.total(guestWallet))

	// No time passed: repeating the heartbeat debits nothing.
	_, err = f.actor.Heartbeat(ctx, guestWallet, conn.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.meter.total(guestWallet))

	// Fractions carry over instead of being dropped.
	f.clock.Advance(1500 * time.Millisecond)
	_, err = f.actor.Heartbeat(ctx, guestWallet, conn.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), f.meter.total(guestWallet))

	f.clock.Advance(600 * time.Millisecond)
	_, err = f.actor.Heartbeat(ctx, guestWallet, conn.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), f.meter.total(guestWallet))
}

func TestHeartbeatUnknownConnectionIsStale(t *testing.T) {
	f := startTestActor(t, time.Minute)
	ctx := context.Background()

	conn, err := f.actor.Join(ctx, guestWallet)
	require.NoError(t, err)

	_, err = f.actor.Heartbeat(ctx, guestWallet, "bogus")
	assert.ErrorIs(t, err, domain.ErrConnectionStale)

	// Right connection id, wrong wallet.
	_, err = f.actor.Heartbeat(ctx, thirdWallet, conn.ConnectionID)
	assert.ErrorIs(t, err, domain.ErrConnectionStale)
}

func TestOutOfCreditForcesLeave(t *testing.T) {
	f := startTestActor(t, time.Minute)
	ctx := context.Background()

	_, err := f.actor.Join(ctx, hostWallet)
	require.NoError(t, err)
	conn, err := f.actor.Join(ctx, thirdWallet) // third has no balance
	require.NoError(t, err)

	f.clock.Advance(5 * time.Second)
	res, err := f.actor.Heartbeat(ctx, thirdWallet, conn.ConnectionID)
	require.NoError(t, err)
	assert.True(t, res.EndedOutOfCredit)

	// Connection is gone, room stays open.
	_, err = f.actor.Heartbeat(ctx, thirdWallet, conn.ConnectionID)
	assert.ErrorIs(t, err, domain.ErrConnectionStale)
	assert.Equal(t, 1, f.sink.lastCount())
	assert.Empty(t, f.sink.closeReasons())
}

func TestHostOutOfCreditClosesRoom(t *testing.T) {
	f := startTestActor(t, time.Minute)
	ctx := context.Background()

	f.meter.mu.Lock()
	f.meter.balances[hostWallet] = 0
	f.meter.mu.Unlock()

	host, err := f.actor.Join(ctx, hostWallet)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Second)
	res, err := f.actor.Heartbeat(ctx, hostWallet, host.ConnectionID)
	require.NoError(t, err)
	assert.True(t, res.EndedOutOfCredit)

	f.waitClosed(t)
	assert.Equal(t, []CloseReason{CloseHostLeft}, f.sink.closeReasons())
}

func TestReapClosesRoomWhenHostGoesSilent(t *testing.T) {
	f := startTestActor(t, 100*time.Millisecond)
	ctx := context.Background()

	_, err := f.actor.Join(ctx, hostWallet)
	require.NoError(t, err)
	_, err = f.actor.Join(ctx, guestWallet)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	f.waitClosed(t)

	assert.Equal(t, []CloseReason{CloseHostReaped}, f.sink.closeReasons())
	// Both connections got their final debit.
	assert.Equal(t, int64(1), f.meter.total(hostWallet))
	assert.Equal(t, int64(1), f.meter.total(guestWallet))
}

func TestReapRemovesSilentGuestOnly(t *testing.T) {
	f := startTestActor(t, 300*time.Millisecond)
	ctx := context.Background()

	host, err := f.actor.Join(ctx, hostWallet)
	require.NoError(t, err)
	guest, err := f.actor.Join(ctx, guestWallet)
	require.NoError(t, err)

	// Keep the host alive past the window while the guest stays silent.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.clock.Advance(100 * time.Millisecond)
		_, err = f.actor.Heartbeat(ctx, hostWallet, host.ConnectionID)
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
	}

	_, err = f.actor.Heartbeat(ctx, guestWallet, guest.ConnectionID)
	assert.ErrorIs(t, err, domain.ErrConnectionStale)
	assert.Empty(t, f.sink.closeReasons())
}

func TestReapClosesRoomWhoseHostNeverJoined(t *testing.T) {
	f := startTestActor(t, 100*time.Millisecond)

	f.clock.Advance(time.Second)
	f.waitClosed(t)
	assert.Equal(t, []CloseReason{CloseHostReaped}, f.sink.closeReasons())
}

func TestOperationsSerializeUnderConcurrency(t *testing.T) {
	f := startTestActor(t, time.Minute)
	ctx := context.Background()

	_, err := f.actor.Join(ctx, hostWallet)
	require.NoError(t, err)

	wallets := []domain.Wallet{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
		"0x4444444444444444444444444444444444444444",
	}
	var wg sync.WaitGroup
	for _, w := range wallets {
		f.meter.grant(w, 1000)
		wg.Add(1)
		go func(w domain.Wallet) {
			defer wg.Done()
			conn, err := f.actor.Join(ctx, w)
			if !assert.NoError(t, err) {
				return
			}
			_, err = f.actor.Heartbeat(ctx, w, conn.ConnectionID)
			assert.NoError(t, err)
			_, err = f.actor.Leave(ctx, w, conn.ConnectionID)
			assert.NoError(t, err)
		}(w)
	}
	wg.Wait()

	snap, err := f.actor.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Connections, 1)
	assert.Equal(t, hostWallet, snap.Connections[0].Wallet)
}
