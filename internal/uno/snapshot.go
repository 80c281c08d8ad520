// internal/uno/snapshot.go
package uno

import (
	"github.com/google/uuid"
)

// SeatView is the public state of one seated player.
type SeatView struct {
	PlayerID     PlayerID `json:"player_id"`
	HandSize     int      `json:"hand_size"`
	IsTurnHolder bool     `json:"isTurnHolder"`
}

// Snapshot is the read-only view of a session for one viewer. Other players' cards are reduced to
// counts; the viewer's own hand and playable indexes are included only for a seated viewer.
type Snapshot struct {
	SessionID       uuid.UUID  `json:"session_id"`
	LobbyID         uuid.UUID  `json:"lobby_id"`
	Status          Status     `json:"status"`
	Players         []SeatView `json:"players"`
	TurnHolder      PlayerID   `json:"turnHolder,omitempty"`
	Direction       int        `json:"direction"`
	DiscardTop      *Card      `json:"discardTop,omitempty"`
	ActiveWildColor Color      `json:"activeWildColor,omitempty"`
	DrawPileSize    int        `json:"drawPileSize"`
	Pot             int64      `json:"pot"`
	Turn            int        `json:"turn"`
	Winner          PlayerID   `json:"winner,omitempty"`
	Outcome         Outcome    `json:"outcome,omitempty"`

	Viewer   PlayerID `json:"viewer,omitempty"`
	Hand     []Card   `json:"hand,omitempty"`
	Playable []int    `json:"playable,omitempty"`
	// PendingColorChoice is the hand index of a wild card the viewer selected and has not yet
	// nominated a color for. It is filled in by the gateway.
	PendingColorChoice *int `json:"pendingColorChoice,omitempty"`

	// Settled is true once every transfer of a finished session has been accepted by the ledger.
	Settled bool `json:"settled"`
}

// Snapshot builds the view of the session for viewer. An empty viewer yields the public view.
// Assumes the lock is held.
func (s *Session) Snapshot(viewer PlayerID) Snapshot {
	snap := Snapshot{
		SessionID:       s.ID,
		LobbyID:         s.LobbyID,
		Status:          s.Status,
		TurnHolder:      s.TurnHolder(),
		Direction:       s.Direction,
		ActiveWildColor: s.ActiveWildColor,
		DrawPileSize:    len(s.Deck.DrawPile),
		Pot:             s.Pot,
		Turn:            s.Turn,
		Winner:          s.Winner,
		Outcome:         s.Outcome,
		Settled:         s.Settlement.Complete(),
	}
	top, ok := s.Deck.Top()
	if ok {
		snap.DiscardTop = &top
	}

	for i, p := range s.Players {
		snap.Players = append(snap.Players, SeatView{
			PlayerID:     p,
			HandSize:     len(s.Hands[p]),
			IsTurnHolder: s.Status == StatusActive && i == s.TurnIndex,
		})
	}

	if viewer == "" || s.Seat(viewer) < 0 {
		return snap
	}
	snap.Viewer = viewer
	hand := s.Hands[viewer]
	snap.Hand = make([]Card, len(hand))
	copy(snap.Hand, hand)
	if ok && snap.TurnHolder == viewer {
		snap.Playable = PlayableIndexes(hand, top, s.ActiveWildColor)
	}
	return snap
}
