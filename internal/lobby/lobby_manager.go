// internal/lobby/lobby_manager.go

package lobby

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/ledger"
	"github.com/jason-s-yu/uno/internal/uno"
	"github.com/sirupsen/logrus"
)

// Manager coordinates lobby creation, joins and the all-or-nothing stake commit that turns a lobby
// into a running session.
type Manager struct {
	store  *Store
	ledger ledger.Ledger
	logger logrus.FieldLogger

	// SessionIdleTimeout is handed to every session the manager starts.
	SessionIdleTimeout time.Duration
	// NewRand seeds the deck of each new session.
	NewRand func() *rand.Rand
}

func NewManager(store *Store, led ledger.Ledger, logger logrus.FieldLogger, sessionIdle time.Duration) *Manager {
	return &Manager{
		store:              store,
		ledger:             led,
		logger:             logger,
		SessionIdleTimeout: sessionIdle,
		NewRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// Store returns the lobby arena.
func (m *Manager) Store() *Store {
	return m.store
}

// Create opens a lobby hosted by host. The host must be able to cover the stake.
func (m *Manager) Create(ctx context.Context, host uno.PlayerID, stake int64, now time.Time) (*Lobby, error) {
	if stake <= 0 {
		return nil, ErrInvalidStake
	}
	if err := checkFunds(ctx, m.ledger, host, stake); err != nil {
		return nil, err
	}
	l := New(host, stake, now)
	m.store.Add(l)
	m.logger.WithFields(logrus.Fields{"lobby": l.ID, "player": host, "stake": stake}).Info("lobby created")
	return l, nil
}

// Join seats player in the lobby.
func (m *Manager) Join(ctx context.Context, lobbyID uuid.UUID, player uno.PlayerID, now time.Time) error {
	l, ok := m.store.Get(lobbyID)
	if !ok {
		return ErrLobbyNotFound
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if err := l.Join(ctx, m.ledger, player, now); err != nil {
		return err
	}
	m.logger.WithFields(logrus.Fields{"lobby": l.ID, "player": player}).Info("player joined lobby")
	return nil
}

// Start reserves the stake of every seated player in seat order and starts the session. If any
// reservation fails the ones already taken are refunded and no session is created.
func (m *Manager) Start(ctx context.Context, lobbyID uuid.UUID, requester uno.PlayerID, now time.Time) (*uno.Session, error) {
	l, ok := m.store.Get(lobbyID)
	if !ok {
		return nil, ErrLobbyNotFound
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.Started {
		return nil, ErrLobbyStarted
	}
	if requester != l.HostID {
		return nil, ErrNotHost
	}
	if len(l.Players) < 2 {
		return nil, ErrTooFewPlayers
	}

	reserved := make([]uno.PlayerID, 0, len(l.Players))
	for _, p := range l.Players {
		if err := m.ledger.Reserve(ctx, p, l.Stake); err != nil {
			m.rollback(ctx, l, reserved)
			return nil, fmt.Errorf("%w: reserving %d from %s: %w", ErrReservationFailed, l.Stake, p, err)
		}
		reserved = append(reserved, p)
	}

	session, err := uno.NewSession(l.ID, l.Players, l.Stake, m.SessionIdleTimeout, m.NewRand(), now)
	if err == nil {
		err = session.Start(now)
	}
	if err != nil {
		m.rollback(ctx, l, reserved)
		return nil, fmt.Errorf("starting session for lobby %s: %w", l.ID, err)
	}

	l.Started = true
	l.SessionID = session.ID
	l.LastActivity = now
	m.logger.WithFields(logrus.Fields{
		"lobby":   l.ID,
		"session": session.ID,
		"players": len(session.Players),
		"pot":     session.Pot,
	}).Info("lobby started")
	return session, nil
}

// rollback refunds every reservation taken so far. A refund that fails is logged; it cannot be
// retried from here.
func (m *Manager) rollback(ctx context.Context, l *Lobby, reserved []uno.PlayerID) {
	for _, p := range reserved {
		if err := m.ledger.Refund(ctx, p, l.Stake); err != nil {
			m.logger.WithFields(logrus.Fields{
				"lobby":  l.ID,
				"player": p,
				"amount": l.Stake,
			}).WithError(err).Error("refund after failed start")
		}
	}
}

// ExpireIdle discards unstarted lobbies idle for at least idle. Nothing was debited, so nothing is
// refunded. Returns the ids removed.
func (m *Manager) ExpireIdle(now time.Time, idle time.Duration) []uuid.UUID {
	var removed []uuid.UUID
	for _, l := range m.store.List() {
		l.Mu.Lock()
		if l.Expired(now, idle) {
			m.store.Delete(l.ID)
			removed = append(removed, l.ID)
			m.logger.WithField("lobby", l.ID).Info("idle lobby discarded")
		}
		l.Mu.Unlock()
	}
	return removed
}
