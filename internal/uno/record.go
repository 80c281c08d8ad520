package uno

import (
	"time"

	"github.com/google/uuid"
)

// Record is the persistence view of a session: who started, how it ended and who was paid.
type Record struct {
	SessionID  uuid.UUID  `json:"session_id"`
	LobbyID    uuid.UUID  `json:"lobby_id"`
	Starters   []PlayerID `json:"starters"`
	Remaining  []PlayerID `json:"remaining"`
	Stake      int64      `json:"stake"`
	Pot        int64      `json:"pot"`
	Status     Status     `json:"status"`
	Outcome    Outcome    `json:"outcome,omitempty"`
	Winner     PlayerID   `json:"winner,omitempty"`
	Transfers  []Transfer `json:"transfers,omitempty"`
	Turns      int        `json:"turns"`
	Recycled   int        `json:"recycled"`
	DeckSize   int        `json:"deck_size"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
}

// Record copies the persistent facts out of the session. Assumes the lock is held.
func (s *Session) Record() Record {
	rec := Record{
		SessionID:  s.ID,
		LobbyID:    s.LobbyID,
		Starters:   append([]PlayerID(nil), s.Starters...),
		Remaining:  append([]PlayerID(nil), s.Players...),
		Stake:      s.Stake,
		Pot:        s.Pot,
		Status:     s.Status,
		Outcome:    s.Outcome,
		Winner:     s.Winner,
		Turns:      s.Turn,
		Recycled:   s.Deck.Recycled,
		DeckSize:   len(s.Cards()),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	if s.Settlement != nil {
		rec.Transfers = append([]Transfer(nil), s.Settlement.Transfers...)
	}
	return rec
}
