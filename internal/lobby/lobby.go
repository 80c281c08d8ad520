// internal/lobby/lobby.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/ledger"
	"github.com/jason-s-yu/uno/internal/uno"
)

// MaxPlayers is the seat limit of a lobby.
const MaxPlayers = 4

var (
	ErrAlreadyJoined     = errors.New("already joined")
	ErrLobbyFull         = errors.New("lobby is full")
	ErrInsufficientFunds = ledger.ErrInsufficientFunds

	ErrNotHost           = errors.New("only the host can start the game")
	ErrTooFewPlayers     = errors.New("at least two players are required to start")
	ErrReservationFailed = errors.New("stake reservation failed")

	ErrLobbyNotFound = errors.New("lobby not found")
	ErrLobbyStarted  = errors.New("lobby already started")
	ErrInvalidStake  = errors.New("stake must be positive")
)

// Lobby gathers players for one staked session. Nothing is debited until Start.
type Lobby struct {
	ID      uuid.UUID      `json:"id"`
	HostID  uno.PlayerID   `json:"hostId"`
	Stake   int64          `json:"stake"`
	Players []uno.PlayerID `json:"players"`

	Started   bool      `json:"started"`
	SessionID uuid.UUID `json:"sessionId,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`

	// Mu guards all fields. Lobby methods assume it is held.
	Mu sync.Mutex `json:"-"`
}

// New creates a lobby with the host already seated.
func New(host uno.PlayerID, stake int64, now time.Time) *Lobby {
	return &Lobby{
		ID:           uuid.New(),
		HostID:       host,
		Stake:        stake,
		Players:      []uno.PlayerID{host},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Join seats player if the lobby is open, has room, and the player can cover the stake.
// Assumes lock is held.
func (l *Lobby) Join(ctx context.Context, led ledger.Ledger, player uno.PlayerID, now time.Time) error {
	if l.Started {
		return ErrLobbyStarted
	}
	if l.hasPlayer(player) {
		return ErrAlreadyJoined
	}
	if len(l.Players) >= MaxPlayers {
		return ErrLobbyFull
	}
	if err := checkFunds(ctx, led, player, l.Stake); err != nil {
		return err
	}
	l.Players = append(l.Players, player)
	l.LastActivity = now
	return nil
}

// Expired reports whether an unstarted lobby has been idle for at least idle.
func (l *Lobby) Expired(now time.Time, idle time.Duration) bool {
	return !l.Started && idle > 0 && now.Sub(l.LastActivity) >= idle
}

func (l *Lobby) hasPlayer(p uno.PlayerID) bool {
	for _, id := range l.Players {
		if id == p {
			return true
		}
	}
	return false
}

// View is the read-only projection of a lobby.
type View struct {
	ID         uuid.UUID      `json:"id"`
	HostID     uno.PlayerID   `json:"hostId"`
	Stake      int64          `json:"stake"`
	Players    []uno.PlayerID `json:"players"`
	MaxPlayers int            `json:"maxPlayers"`
	Started    bool           `json:"started"`
	SessionID  *uuid.UUID     `json:"sessionId,omitempty"`
}

// View copies the lobby state. Assumes lock is held.
func (l *Lobby) View() View {
	v := View{
		ID:         l.ID,
		HostID:     l.HostID,
		Stake:      l.Stake,
		Players:    append([]uno.PlayerID(nil), l.Players...),
		MaxPlayers: MaxPlayers,
		Started:    l.Started,
	}
	if l.Started {
		id := l.SessionID
		v.SessionID = &id
	}
	return v
}

func checkFunds(ctx context.Context, led ledger.Ledger, player uno.PlayerID, stake int64) error {
	coins, err := led.Balance(ctx, player)
	if err != nil {
		return fmt.Errorf("checking balance of %s: %w", player, err)
	}
	if coins < stake {
		return ErrInsufficientFunds
	}
	return nil
}
