package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/uno"
)

// DefaultSelectionTTL bounds how long a highlighted wild card waits for its color.
const DefaultSelectionTTL = time.Minute

// Selection is a wild card a player highlighted and still has to nominate a color for.
type Selection struct {
	CardIndex int       `json:"cardIndex"`
	CardID    uuid.UUID `json:"cardId"`
	// Turn is the session turn the selection was made on; a later turn makes it stale.
	Turn    int       `json:"turn"`
	Expires time.Time `json:"expires"`
}

type selectionKey struct {
	session uuid.UUID
	player  uno.PlayerID
}

// Selections is the short-lived per-player UI context, kept apart from session state.
type Selections struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[selectionKey]Selection
}

func NewSelections(ttl time.Duration) *Selections {
	if ttl <= 0 {
		ttl = DefaultSelectionTTL
	}
	return &Selections{
		ttl:     ttl,
		entries: make(map[selectionKey]Selection),
	}
}

// Put records sel for the player, replacing any previous one.
func (s *Selections) Put(session uuid.UUID, player uno.PlayerID, sel Selection, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel.Expires = now.Add(s.ttl)
	s.entries[selectionKey{session, player}] = sel
}

// Peek returns the live selection without removing it.
func (s *Selections) Peek(session uuid.UUID, player uno.PlayerID, now time.Time) (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := selectionKey{session, player}
	sel, ok := s.entries[key]
	if !ok {
		return Selection{}, false
	}
	if !now.Before(sel.Expires) {
		delete(s.entries, key)
		return Selection{}, false
	}
	return sel, true
}

// Take removes and returns the live selection. Expired entries are dropped and reported missing.
func (s *Selections) Take(session uuid.UUID, player uno.PlayerID, now time.Time) (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := selectionKey{session, player}
	sel, ok := s.entries[key]
	if !ok {
		return Selection{}, false
	}
	delete(s.entries, key)
	if !now.Before(sel.Expires) {
		return Selection{}, false
	}
	return sel, true
}

// Purge drops every expired selection and returns how many were removed.
func (s *Selections) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, sel := range s.entries {
		if !now.Before(sel.Expires) {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

// DropSession forgets every selection of a session.
func (s *Selections) DropSession(session uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if key.session == session {
			delete(s.entries, key)
		}
	}
}

// SelectCard highlights the card at cardIndex for the turn-holder. A wild card is parked until
// ChooseColor names its color; any other legal card is played immediately.
func (g *Gateway) SelectCard(ctx context.Context, sessionID uuid.UUID, player uno.PlayerID, cardIndex int) (uno.Snapshot, error) {
	s, ok := g.sessions.Get(sessionID)
	if !ok {
		return uno.Snapshot{}, ErrSessionNotFound
	}

	s.Mu.Lock()
	if s.Status != uno.StatusActive {
		s.Mu.Unlock()
		return uno.Snapshot{}, uno.ErrGameNotActive
	}
	if s.Seat(player) < 0 {
		s.Mu.Unlock()
		return uno.Snapshot{}, uno.ErrPlayerNotSeated
	}
	if s.TurnHolder() != player {
		s.Mu.Unlock()
		return uno.Snapshot{}, uno.ErrNotYourTurn
	}
	hand := s.Hands[player]
	if cardIndex < 0 || cardIndex >= len(hand) {
		s.Mu.Unlock()
		return uno.Snapshot{}, fmt.Errorf("%w: no card at index %d", uno.ErrIllegalCard, cardIndex)
	}
	card := hand[cardIndex]
	top, _ := s.Deck.Top()
	if !uno.IsLegal(card, top, s.ActiveWildColor) {
		s.Mu.Unlock()
		return uno.Snapshot{}, fmt.Errorf("%w: %s on %s", uno.ErrIllegalCard, card, top)
	}
	turn := s.Turn
	if !card.IsWild() {
		s.Mu.Unlock()
		return g.Submit(ctx, Intent{Kind: IntentPlay, SessionID: sessionID, PlayerID: player, CardIndex: cardIndex, Turn: &turn})
	}

	g.Selections.Put(s.ID, player, Selection{CardIndex: cardIndex, CardID: card.ID, Turn: turn}, g.now())
	snap := g.snapshotLocked(s, player)
	s.Mu.Unlock()
	return snap, nil
}

// ChooseColor completes a pending wild selection by playing it with color.
func (g *Gateway) ChooseColor(ctx context.Context, sessionID uuid.UUID, player uno.PlayerID, color uno.Color) (uno.Snapshot, error) {
	if !color.Valid() {
		// The selection stays parked so the player can pick again.
		return uno.Snapshot{}, fmt.Errorf("%w: %q", uno.ErrInvalidColorChoice, color)
	}
	sel, ok := g.Selections.Take(sessionID, player, g.now())
	if !ok {
		return uno.Snapshot{}, ErrNoSelection
	}
	turn := sel.Turn
	return g.Submit(ctx, Intent{
		Kind:      IntentPlay,
		SessionID: sessionID,
		PlayerID:  player,
		CardIndex: sel.CardIndex,
		Color:     color,
		Turn:      &turn,
	})
}
