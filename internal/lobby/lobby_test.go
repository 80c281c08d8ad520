package lobby

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/ledger"
	"github.com/jason-s-yu/uno/internal/uno"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestManager(t *testing.T) (*Manager, *ledger.Memory) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	led := ledger.NewMemory(100)
	m := NewManager(NewStore(), led, logger, time.Minute)
	m.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(9)) }
	return m, led
}

func TestCreateLobby(t *testing.T) {
	m, led := setupTestManager(t)
	ctx := context.Background()

	l, err := m.Create(ctx, "host", 50, testNow)
	require.NoError(t, err)
	assert.Equal(t, []uno.PlayerID{"host"}, l.Players)
	stored, ok := m.Store().Get(l.ID)
	require.True(t, ok)
	assert.Same(t, l, stored)

	coins, _ := led.Balance(ctx, "host")
	assert.Equal(t, int64(100), coins, "nothing is debited before start")

	_, err = m.Create(ctx, "host", 0, testNow)
	assert.ErrorIs(t, err, ErrInvalidStake)
	_, err = m.Create(ctx, "host", 500, testNow)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestJoinErrors(t *testing.T) {
	m, led := setupTestManager(t)
	ctx := context.Background()
	l, err := m.Create(ctx, "host", 50, testNow)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Join(ctx, l.ID, "host", testNow), ErrAlreadyJoined)
	assert.ErrorIs(t, m.Join(ctx, uuid.New(), "p2", testNow), ErrLobbyNotFound)

	led.Set("poor", 10)
	assert.ErrorIs(t, m.Join(ctx, l.ID, "poor", testNow), ErrInsufficientFunds)

	require.NoError(t, m.Join(ctx, l.ID, "p2", testNow.Add(time.Second)))
	require.NoError(t, m.Join(ctx, l.ID, "p3", testNow))
	require.NoError(t, m.Join(ctx, l.ID, "p4", testNow))
	assert.ErrorIs(t, m.Join(ctx, l.ID, "p5", testNow), ErrLobbyFull)
	assert.Len(t, l.Players, MaxPlayers)
}

func TestStartCommitsStakes(t *testing.T) {
	m, led := setupTestManager(t)
	ctx := context.Background()
	l, err := m.Create(ctx, "a", 50, testNow)
	require.NoError(t, err)
	require.NoError(t, m.Join(ctx, l.ID, "b", testNow))
	require.NoError(t, m.Join(ctx, l.ID, "c", testNow))

	_, err = m.Start(ctx, l.ID, "b", testNow)
	assert.ErrorIs(t, err, ErrNotHost)

	s, err := m.Start(ctx, l.ID, "a", testNow)
	require.NoError(t, err)
	assert.Equal(t, uno.StatusActive, s.Status)
	assert.Equal(t, int64(150), s.Pot)
	assert.Equal(t, []uno.PlayerID{"a", "b", "c"}, s.Players)
	assert.Equal(t, l.ID, s.LobbyID)
	assert.Equal(t, time.Minute, s.IdleTimeout)
	assert.True(t, l.Started)
	assert.Equal(t, s.ID, l.SessionID)

	for _, p := range []uno.PlayerID{"a", "b", "c"} {
		coins, _ := led.Balance(ctx, p)
		assert.Equal(t, int64(50), coins, "stake debited from %s", p)
	}

	_, err = m.Start(ctx, l.ID, "a", testNow)
	assert.ErrorIs(t, err, ErrLobbyStarted)
	assert.ErrorIs(t, m.Join(ctx, l.ID, "d", testNow), ErrLobbyStarted)
}

func TestStartNeedsTwoPlayers(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	l, err := m.Create(ctx, "a", 50, testNow)
	require.NoError(t, err)

	_, err = m.Start(ctx, l.ID, "a", testNow)
	assert.ErrorIs(t, err, ErrTooFewPlayers)
	assert.False(t, l.Started)
}

func TestStartRollsBackPartialReservations(t *testing.T) {
	m, led := setupTestManager(t)
	ctx := context.Background()
	l, err := m.Create(ctx, "a", 50, testNow)
	require.NoError(t, err)
	require.NoError(t, m.Join(ctx, l.ID, "b", testNow))
	require.NoError(t, m.Join(ctx, l.ID, "c", testNow))
	before := led.Total()

	// c spends their coins after joining.
	led.Set("c", 20)
	before -= 80

	_, err = m.Start(ctx, l.ID, "a", testNow)
	require.ErrorIs(t, err, ErrReservationFailed)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, l.Started)

	for _, p := range []uno.PlayerID{"a", "b"} {
		coins, _ := led.Balance(ctx, p)
		assert.Equal(t, int64(100), coins, "%s refunded", p)
	}
	coins, _ := led.Balance(ctx, "c")
	assert.Equal(t, int64(20), coins)
	assert.Equal(t, before, led.Total())
}

func TestExpireIdle(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	idle, err := m.Create(ctx, "a", 10, testNow)
	require.NoError(t, err)
	fresh, err := m.Create(ctx, "b", 10, testNow.Add(10*time.Minute))
	require.NoError(t, err)
	started, err := m.Create(ctx, "c", 10, testNow)
	require.NoError(t, err)
	require.NoError(t, m.Join(ctx, started.ID, "d", testNow))
	_, err = m.Start(ctx, started.ID, "c", testNow)
	require.NoError(t, err)

	removed := m.ExpireIdle(testNow.Add(15*time.Minute), 15*time.Minute)
	assert.Equal(t, []uuid.UUID{idle.ID}, removed)
	_, ok := m.Store().Get(fresh.ID)
	assert.True(t, ok)
	_, ok = m.Store().Get(started.ID)
	assert.True(t, ok)
}

func TestLobbyView(t *testing.T) {
	l := New("host", 25, testNow)
	v := l.View()
	assert.Equal(t, MaxPlayers, v.MaxPlayers)
	assert.Nil(t, v.SessionID)
	v.Players[0] = "someone"
	assert.Equal(t, uno.PlayerID("host"), l.Players[0])
}
