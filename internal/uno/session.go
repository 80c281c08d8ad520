// internal/uno/session.go
package uno

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PlayerID is the opaque identity of a participant as resolved by the chat platform.
type PlayerID string

// Status is the lifecycle state of a session.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Outcome records why a session finished.
type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeEmptyHand    Outcome = "empty_hand"
	OutcomeLastStanding Outcome = "last_standing"
	OutcomeTimeout      Outcome = "timeout"
)

// HandSize is the number of cards dealt to each player on start.
const HandSize = 7

// settlementNamespace roots every settlement token so tokens are stable for a given session.
var settlementNamespace = uuid.MustParse("6f1d3c8e-2a47-5b9e-9c1d-4e8f0a7b3d25")

// Session is the authoritative state of one match. All methods assume Mu is held by the caller;
// the gateway is the only code that takes it.
type Session struct {
	ID      uuid.UUID `json:"id"`
	LobbyID uuid.UUID `json:"lobbyId"`

	// Players is the current seat order. Surrendered players are removed.
	Players []PlayerID `json:"players"`

	// Starters is the seat order at start, kept for settlement records and stats.
	Starters []PlayerID `json:"starters"`

	Hands map[PlayerID][]Card `json:"hands"`
	Deck  Deck                `json:"deck"`

	// Retired holds the hands of surrendered players. Those cards never return to play.
	Retired []Card `json:"retired"`

	TurnIndex       int   `json:"turnIndex"`
	Direction       int   `json:"direction"`
	ActiveWildColor Color `json:"activeWildColor,omitempty"`

	Stake int64 `json:"stake"`
	Pot   int64 `json:"pot"`

	Status     Status      `json:"status"`
	Outcome    Outcome     `json:"outcome,omitempty"`
	Winner     PlayerID    `json:"winner,omitempty"`
	Settlement *Settlement `json:"settlement,omitempty"`

	// Turn increments on every accepted action; intents may quote it to detect replays.
	Turn int `json:"turn"`
	// LogSeq numbers the action records published for this session.
	LogSeq int `json:"logSeq"`

	IdleTimeout  time.Duration `json:"idleTimeout"`
	CreatedAt    time.Time     `json:"createdAt"`
	StartedAt    time.Time     `json:"startedAt"`
	LastActionAt time.Time     `json:"lastActionAt"`
	FinishedAt   time.Time     `json:"finishedAt"`

	Mu  sync.Mutex `json:"-"`
	rng *rand.Rand
}

// NewSession builds a session in the lobby state. The stake of every player must already be
// reserved; the pot is stake times the number of players.
func NewSession(lobbyID uuid.UUID, players []PlayerID, stake int64, idleTimeout time.Duration, rng *rand.Rand, now time.Time) (*Session, error) {
	if len(players) < 2 {
		return nil, ErrTooFewPlayers
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	seats := make([]PlayerID, len(players))
	copy(seats, players)
	return &Session{
		ID:          uuid.New(),
		LobbyID:     lobbyID,
		Players:     seats,
		Hands:       make(map[PlayerID][]Card, len(seats)),
		Direction:   1,
		Stake:       stake,
		Pot:         stake * int64(len(seats)),
		Status:      StatusLobby,
		IdleTimeout: idleTimeout,
		CreatedAt:   now,
		rng:         rng,
	}, nil
}

// Start deals the cards and flips a non-wild starter onto the discard pile.
func (s *Session) Start(now time.Time) error {
	if s.Status != StatusLobby {
		return ErrNotInLobby
	}
	if len(s.Players) < 2 {
		return ErrTooFewPlayers
	}

	s.Deck = NewDeck(s.rng)
	for round := 0; round < HandSize; round++ {
		for _, p := range s.Players {
			s.Hands[p] = append(s.Hands[p], s.Deck.Draw(1, s.rng)...)
		}
	}

	// A wild starter goes back into the deck until a colored card turns up.
	for {
		drawn := s.Deck.Draw(1, s.rng)
		if len(drawn) == 0 {
			return fmt.Errorf("deck exhausted while flipping starter")
		}
		if drawn[0].IsWild() {
			s.Deck.Return(drawn[0], s.rng)
			continue
		}
		s.Deck.Discard(drawn[0])
		break
	}

	s.Starters = make([]PlayerID, len(s.Players))
	copy(s.Starters, s.Players)
	s.TurnIndex = 0
	s.Direction = 1
	s.ActiveWildColor = ""
	s.Status = StatusActive
	s.StartedAt = now
	s.LastActionAt = now
	return nil
}

// TurnHolder returns the player authorized to act, or empty when the session is not active.
func (s *Session) TurnHolder() PlayerID {
	if s.Status != StatusActive || len(s.Players) == 0 {
		return ""
	}
	return s.Players[s.TurnIndex]
}

// Seat returns the current seat index of p, or -1.
func (s *Session) Seat(p PlayerID) int {
	for i, id := range s.Players {
		if id == p {
			return i
		}
	}
	return -1
}

// PlayCard plays the card at index from player's hand. color is required when, and only when, the
// card is wild.
func (s *Session) PlayCard(player PlayerID, index int, color Color, now time.Time) error {
	if err := s.checkTurn(player); err != nil {
		return err
	}
	hand := s.Hands[player]
	if index < 0 || index >= len(hand) {
		return fmt.Errorf("%w: no card at index %d", ErrIllegalCard, index)
	}
	card := hand[index]
	top, _ := s.Deck.Top()
	if !IsLegal(card, top, s.ActiveWildColor) {
		return fmt.Errorf("%w: %s on %s", ErrIllegalCard, card, top)
	}
	if card.IsWild() {
		if !color.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidColorChoice, color)
		}
	} else if color != "" {
		return fmt.Errorf("%w: %s is not wild", ErrInvalidColorChoice, card)
	}

	s.Hands[player] = removeCard(hand, index)
	s.Deck.Discard(card)
	if card.IsWild() {
		s.ActiveWildColor = color
	} else {
		s.ActiveWildColor = ""
	}
	s.touch(now)

	if len(s.Hands[player]) == 0 {
		s.finish(OutcomeEmptyHand, player, now)
		return nil
	}

	switch card.Rank {
	case RankSkip:
		s.advance(2)
	case RankReverse:
		s.Direction = -s.Direction
		if len(s.Players) == 2 {
			s.advance(2)
		} else {
			s.advance(1)
		}
	case RankDrawTwo:
		s.penalizeNext(2)
	case RankWildDrawFour:
		s.penalizeNext(4)
	default:
		s.advance(1)
	}
	return nil
}

// DrawCard draws one card for the turn-holder and passes the turn. The returned slice is empty when
// both piles are exhausted.
func (s *Session) DrawCard(player PlayerID, now time.Time) ([]Card, error) {
	if err := s.checkTurn(player); err != nil {
		return nil, err
	}
	drawn := s.Deck.Draw(1, s.rng)
	s.Hands[player] = append(s.Hands[player], drawn...)
	s.touch(now)
	s.advance(1)
	return drawn, nil
}

// Surrender removes player and their hand from the game at any point of an active session.
func (s *Session) Surrender(player PlayerID, now time.Time) error {
	if s.Status != StatusActive {
		return ErrGameNotActive
	}
	idx := s.Seat(player)
	if idx < 0 {
		return ErrPlayerNotSeated
	}

	s.Retired = append(s.Retired, s.Hands[player]...)
	delete(s.Hands, player)
	s.Players = append(s.Players[:idx:idx], s.Players[idx+1:]...)

	// Keep the pointer on the same logical player. When the turn-holder leaves under reverse
	// direction the previous seat is next in line.
	if idx < s.TurnIndex || (idx == s.TurnIndex && s.Direction < 0) {
		s.TurnIndex--
	}
	s.TurnIndex = mod(s.TurnIndex, len(s.Players))
	s.touch(now)

	if len(s.Players) == 1 {
		s.finish(OutcomeLastStanding, s.Players[0], now)
	}
	return nil
}

// Timeout force-finishes an active session and splits the pot among the players still seated.
func (s *Session) Timeout(now time.Time) error {
	if s.Status != StatusActive {
		return ErrGameNotActive
	}
	s.finish(OutcomeTimeout, "", now)
	return nil
}

// Expired reports whether the idle window has elapsed since the last accepted action.
func (s *Session) Expired(now time.Time) bool {
	if s.Status != StatusActive || s.IdleTimeout <= 0 {
		return false
	}
	return now.Sub(s.LastActionAt) >= s.IdleTimeout
}

// Cards returns every card the session accounts for: hands, both piles and retired cards.
func (s *Session) Cards() []Card {
	all := make([]Card, 0, DeckSize)
	all = append(all, s.Deck.DrawPile...)
	all = append(all, s.Deck.DiscardPile...)
	for _, p := range s.Players {
		all = append(all, s.Hands[p]...)
	}
	all = append(all, s.Retired...)
	return all
}

// NextLogIndex returns the next action record index.
func (s *Session) NextLogIndex() int {
	s.LogSeq++
	return s.LogSeq
}

func (s *Session) checkTurn(player PlayerID) error {
	if s.Status != StatusActive {
		return ErrGameNotActive
	}
	if s.Seat(player) < 0 {
		return ErrPlayerNotSeated
	}
	if s.TurnHolder() != player {
		return ErrNotYourTurn
	}
	return nil
}

// penalizeNext makes the next player draw n cards and skips them.
func (s *Session) penalizeNext(n int) {
	victim := s.Players[s.offset(1)]
	s.Hands[victim] = append(s.Hands[victim], s.Deck.Draw(n, s.rng)...)
	s.advance(2)
}

func (s *Session) advance(steps int) {
	s.TurnIndex = s.offset(steps)
}

func (s *Session) offset(steps int) int {
	return mod(s.TurnIndex+s.Direction*steps, len(s.Players))
}

func (s *Session) touch(now time.Time) {
	s.Turn++
	s.LastActionAt = now
}

// finish moves the session to finished exactly once and computes the transfers owed.
func (s *Session) finish(outcome Outcome, winner PlayerID, now time.Time) {
	if s.Status == StatusFinished {
		return
	}
	s.Status = StatusFinished
	s.Outcome = outcome
	s.Winner = winner
	s.FinishedAt = now

	root := uuid.NewSHA1(settlementNamespace, []byte(s.ID.String()))
	settlement := &Settlement{Token: root}
	switch {
	case s.Pot <= 0:
	case winner != "":
		settlement.add(winner, s.Pot)
	default:
		for i, share := range splitPot(s.Pot, len(s.Players)) {
			settlement.add(s.Players[i], share)
		}
	}
	s.Settlement = settlement
}

// splitPot divides pot into n shares; the remainder goes one unit per share from the first.
func splitPot(pot int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	shares := make([]int64, n)
	base, rem := pot/int64(n), pot%int64(n)
	for i := range shares {
		shares[i] = base
		if int64(i) < rem {
			shares[i]++
		}
	}
	return shares
}

func removeCard(hand []Card, i int) []Card {
	out := make([]Card, 0, len(hand)-1)
	out = append(out, hand[:i]...)
	return append(out, hand[i+1:]...)
}

func mod(a, n int) int {
	if n <= 0 {
		return 0
	}
	return ((a % n) + n) % n
}
