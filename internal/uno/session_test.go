package uno

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type face struct {
	color Color
	rank  Rank
}

func f(color Color, rank Rank) face { return face{color, rank} }

// setupTestSession starts a session of n players ("p1".."pn") with a stake of 50 each.
func setupTestSession(t *testing.T, n int) (*Session, []PlayerID) {
	t.Helper()
	players := make([]PlayerID, n)
	for i := range players {
		players[i] = PlayerID(fmt.Sprintf("p%d", i+1))
	}
	s, err := NewSession(uuid.New(), players, 50, time.Minute, rand.New(rand.NewSource(42)), testNow)
	require.NoError(t, err)
	require.NoError(t, s.Start(testNow))
	require.Equal(t, StatusActive, s.Status)
	return s, players
}

// rig lays out the discard top and the given hands using the session's own cards. Players missing
// from hands get five cards from the draw pile. Every card stays accounted for.
func rig(t *testing.T, s *Session, top face, hands map[PlayerID][]face) {
	t.Helper()
	pool := s.Deck.DrawPile
	pool = append(pool, s.Deck.DiscardPile...)
	for _, p := range s.Players {
		pool = append(pool, s.Hands[p]...)
		s.Hands[p] = nil
	}
	take := func(want face) Card {
		for i, c := range pool {
			if c.Color == want.color && c.Rank == want.rank {
				pool = append(pool[:i:i], pool[i+1:]...)
				return c
			}
		}
		require.FailNow(t, "card not available", "%s:%s", want.color, want.rank)
		return Card{}
	}

	s.Deck.DiscardPile = []Card{take(top)}
	for _, p := range s.Players {
		for _, want := range hands[p] {
			s.Hands[p] = append(s.Hands[p], take(want))
		}
	}
	for _, p := range s.Players {
		if _, ok := hands[p]; !ok {
			s.Hands[p] = append(s.Hands[p], pool[:5]...)
			pool = pool[5:]
		}
	}
	s.Deck.DrawPile = pool
	s.ActiveWildColor = ""
	assertConserved(t, s)
}

func assertConserved(t *testing.T, s *Session) {
	t.Helper()
	ids := map[uuid.UUID]bool{}
	for _, c := range s.Cards() {
		ids[c.ID] = true
	}
	require.Len(t, s.Cards(), DeckSize, "card count")
	require.Len(t, ids, DeckSize, "no card duplicated")
}

func TestStartDealsHandsAndNonWildStarter(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		players := []PlayerID{"a", "b", "c"}
		s, err := NewSession(uuid.New(), players, 50, time.Minute, rand.New(rand.NewSource(seed)), testNow)
		require.NoError(t, err)
		require.NoError(t, s.Start(testNow))

		for _, p := range players {
			assert.Len(t, s.Hands[p], HandSize)
		}
		top, ok := s.Deck.Top()
		require.True(t, ok)
		assert.False(t, top.IsWild(), "seed %d starter %s", seed, top)
		assert.Len(t, s.Deck.DiscardPile, 1)
		assert.Equal(t, DeckSize-3*HandSize-1, len(s.Deck.DrawPile))
		assert.Equal(t, PlayerID("a"), s.TurnHolder())
		assert.Equal(t, 1, s.Direction)
		assert.Equal(t, int64(150), s.Pot)
		assert.Equal(t, players, s.Starters)
		assertConserved(t, s)
	}
}

func TestStartPreconditions(t *testing.T) {
	_, err := NewSession(uuid.New(), []PlayerID{"solo"}, 50, time.Minute, nil, testNow)
	assert.ErrorIs(t, err, ErrTooFewPlayers)

	s, _ := setupTestSession(t, 2)
	assert.ErrorIs(t, s.Start(testNow), ErrNotInLobby)
}

func TestPlayNumberAdvancesOneSeat(t *testing.T) {
	s, p := setupTestSession(t, 3)
	rig(t, s, f(Red, RankFive), map[PlayerID][]face{p[0]: {f(Red, RankThree), f(Blue, RankNine)}})

	require.NoError(t, s.PlayCard(p[0], 0, "", testNow.Add(time.Second)))
	assert.Equal(t, p[1], s.TurnHolder())
	top, _ := s.Deck.Top()
	assert.Equal(t, f(Red, RankThree), f(top.Color, top.Rank))
	assert.Len(t, s.Hands[p[0]], 1)
	assert.Equal(t, 1, s.Turn)
	assert.Equal(t, testNow.Add(time.Second), s.LastActionAt)
	assertConserved(t, s)
}

func TestSkipLandsTwoSeatsAhead(t *testing.T) {
	s, p := setupTestSession(t, 4)
	rig(t, s, f(Red, RankFive), map[PlayerID][]face{p[0]: {f(Red, RankSkip), f(Blue, RankNine)}})

	require.NoError(t, s.PlayCard(p[0], 0, "", testNow))
	assert.Equal(t, p[2], s.TurnHolder())
	assert.Equal(t, 1, s.Direction)
}

func TestReverseWithTwoPlayersActsAsSkip(t *testing.T) {
	s, p := setupTestSession(t, 2)
	rig(t, s, f(Green, RankFive), map[PlayerID][]face{p[0]: {f(Green, RankReverse), f(Blue, RankNine)}})

	require.NoError(t, s.PlayCard(p[0], 0, "", testNow))
	assert.Equal(t, p[0], s.TurnHolder(), "the same player acts again")
	assert.Equal(t, -1, s.Direction)
}

func TestReverseFlipsDirection(t *testing.T) {
	s, p := setupTestSession(t, 3)
	rig(t, s, f(Green, RankFive), map[PlayerID][]face{
		p[0]: {f(Green, RankReverse), f(Blue, RankNine)},
		p[2]: {f(Green, RankOne), f(Red, RankNine)},
	})

	require.NoError(t, s.PlayCard(p[0], 0, "", testNow))
	assert.Equal(t, p[2], s.TurnHolder())
	assert.Equal(t, -1, s.Direction)

	require.NoError(t, s.PlayCard(p[2], 0, "", testNow))
	assert.Equal(t, p[1], s.TurnHolder())
}

// Three players staked 50 each; a draw two from the first player hits only the second.
func TestDrawTwoPenalizesNextPlayerOnly(t *testing.T) {
	s, p := setupTestSession(t, 3)
	require.Equal(t, int64(150), s.Pot)
	rig(t, s, f(Yellow, RankFive), map[PlayerID][]face{p[0]: {f(Yellow, RankDrawTwo), f(Blue, RankNine)}})
	victimBefore := len(s.Hands[p[1]])
	thirdBefore := len(s.Hands[p[2]])

	require.NoError(t, s.PlayCard(p[0], 0, "", testNow))
	assert.Len(t, s.Hands[p[1]], victimBefore+2)
	assert.Len(t, s.Hands[p[2]], thirdBefore)
	assert.Equal(t, p[2], s.TurnHolder())
	assertConserved(t, s)
}

func TestWildDrawFourPenalizesNextPlayerOnly(t *testing.T) {
	s, p := setupTestSession(t, 3)
	rig(t, s, f(Yellow, RankFive), map[PlayerID][]face{
		p[0]: {f(Wild, RankWildDrawFour), f(Blue, RankNine)},
		p[2]: {f(Green, RankOne), f(Red, RankOne), f(Wild, RankWild), f(Green, RankSkip)},
	})
	victimBefore := len(s.Hands[p[1]])

	require.NoError(t, s.PlayCard(p[0], 0, Green, testNow))
	assert.Len(t, s.Hands[p[1]], victimBefore+4)
	assert.Equal(t, p[2], s.TurnHolder())
	assert.Equal(t, Green, s.ActiveWildColor)

	// Only the nominated color or another wild is offered now.
	snap := s.Snapshot(p[2])
	assert.Equal(t, []int{0, 2, 3}, snap.Playable)
	assert.ErrorIs(t, s.PlayCard(p[2], 1, "", testNow), ErrIllegalCard)

	require.NoError(t, s.PlayCard(p[2], 0, "", testNow))
	assert.Equal(t, Color(""), s.ActiveWildColor, "a colored play clears the wild color")
	assertConserved(t, s)
}

func TestColorChoiceRequiredOnlyForWild(t *testing.T) {
	s, p := setupTestSession(t, 2)
	rig(t, s, f(Red, RankFive), map[PlayerID][]face{p[0]: {f(Wild, RankWild), f(Red, RankSix)}})

	assert.ErrorIs(t, s.PlayCard(p[0], 0, "", testNow), ErrInvalidColorChoice)
	assert.ErrorIs(t, s.PlayCard(p[0], 0, Wild, testNow), ErrInvalidColorChoice)
	assert.ErrorIs(t, s.PlayCard(p[0], 0, "purple", testNow), ErrInvalidColorChoice)
	assert.ErrorIs(t, s.PlayCard(p[0], 1, Blue, testNow), ErrInvalidColorChoice)
	assert.Len(t, s.Hands[p[0]], 2, "rejected plays leave the hand untouched")
	assert.Equal(t, p[0], s.TurnHolder())
	assert.Equal(t, 0, s.Turn)

	require.NoError(t, s.PlayCard(p[0], 0, Blue, testNow))
	assert.Equal(t, Blue, s.ActiveWildColor)
	assert.Equal(t, p[1], s.TurnHolder())
}

func TestRejectsOutOfTurnAndIllegalActions(t *testing.T) {
	s, p := setupTestSession(t, 3)
	rig(t, s, f(Red, RankFive), map[PlayerID][]face{p[0]: {f(Blue, RankOne), f(Red, RankSix)}})

	assert.ErrorIs(t, s.PlayCard(p[1], 0, "", testNow), ErrNotYourTurn)
	_, err := s.DrawCard(p[2], testNow)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.ErrorIs(t, s.PlayCard("stranger", 0, "", testNow), ErrPlayerNotSeated)
	assert.ErrorIs(t, s.PlayCard(p[0], 0, "", testNow), ErrIllegalCard)
	assert.ErrorIs(t, s.PlayCard(p[0], 5, "", testNow), ErrIllegalCard)
	assert.ErrorIs(t, s.PlayCard(p[0], -1, "", testNow), ErrIllegalCard)
	assert.Equal(t, 0, s.Turn)
	assertConserved(t, s)
}

func TestDrawCardPassesTurn(t *testing.T) {
	s, p := setupTestSession(t, 3)
	before := len(s.Hands[p[0]])
	pile := len(s.Deck.DrawPile)

	drawn, err := s.DrawCard(p[0], testNow)
	require.NoError(t, err)
	assert.Len(t, drawn, 1)
	assert.Len(t, s.Hands[p[0]], before+1)
	assert.Equal(t, pile-1, len(s.Deck.DrawPile))
	assert.Equal(t, p[1], s.TurnHolder())
	assertConserved(t, s)
}

func TestEmptyHandWinsFullPot(t *testing.T) {
	s, p := setupTestSession(t, 3)
	rig(t, s, f(Red, RankFive), map[PlayerID][]face{p[0]: {f(Red, RankThree)}})

	require.NoError(t, s.PlayCard(p[0], 0, "", testNow))
	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, OutcomeEmptyHand, s.Outcome)
	assert.Equal(t, p[0], s.Winner)
	require.NotNil(t, s.Settlement)
	require.Len(t, s.Settlement.Transfers, 1)
	assert.Equal(t, p[0], s.Settlement.Transfers[0].Player)
	assert.Equal(t, int64(150), s.Settlement.Transfers[0].Amount)
	assert.Equal(t, PlayerID(""), s.TurnHolder())

	assert.ErrorIs(t, s.PlayCard(p[1], 0, "", testNow), ErrGameNotActive)
	assert.ErrorIs(t, s.Surrender(p[1], testNow), ErrGameNotActive)
	assert.ErrorIs(t, s.Timeout(testNow), ErrGameNotActive)
}

func TestWinningEffectCardIsNotApplied(t *testing.T) {
	s, p := setupTestSession(t, 3)
	rig(t, s, f(Red, RankFive), map[PlayerID][]face{p[0]: {f(Red, RankDrawTwo)}})
	victimBefore := len(s.Hands[p[1]])

	require.NoError(t, s.PlayCard(p[0], 0, "", testNow))
	assert.Equal(t, StatusFinished, s.Status)
	assert.Len(t, s.Hands[p[1]], victimBefore)
}

func TestFinishRunsOnce(t *testing.T) {
	s, p := setupTestSession(t, 2)
	rig(t, s, f(Red, RankFive), map[PlayerID][]face{p[0]: {f(Red, RankThree)}})
	require.NoError(t, s.PlayCard(p[0], 0, "", testNow))
	first := s.Settlement

	s.finish(OutcomeTimeout, "", testNow.Add(time.Hour))
	assert.Same(t, first, s.Settlement)
	assert.Equal(t, OutcomeEmptyHand, s.Outcome)
	assert.Equal(t, testNow, s.FinishedAt)
	assert.Len(t, s.Settlement.Transfers, 1)
}

func TestSurrenderKeepsTurnPointer(t *testing.T) {
	tests := []struct {
		name      string
		turn      int
		direction int
		leaver    int
		expect    string
	}{
		{"earlier seat leaves", 2, 1, 0, "p3"},
		{"later seat leaves", 2, 1, 3, "p3"},
		{"turn holder leaves forward", 2, 1, 2, "p4"},
		{"turn holder leaves reversed", 2, -1, 2, "p2"},
		{"last seat holder leaves forward", 3, 1, 3, "p1"},
		{"first seat holder leaves reversed", 0, -1, 0, "p4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := setupTestSession(t, 4)
			s.TurnIndex = tt.turn
			s.Direction = tt.direction
			hand := s.Hands[p[tt.leaver]]

			require.NoError(t, s.Surrender(p[tt.leaver], testNow))
			assert.Equal(t, PlayerID(tt.expect), s.TurnHolder())
			assert.Len(t, s.Players, 3)
			assert.NotContains(t, s.Hands, p[tt.leaver])
			assert.Equal(t, idsOf(hand), idsOf(s.Retired))
			assert.Equal(t, StatusActive, s.Status)
			assertConserved(t, s)
		})
	}
}

func TestSurrenderOutOfTurnAndUnseated(t *testing.T) {
	s, p := setupTestSession(t, 3)
	assert.ErrorIs(t, s.Surrender("stranger", testNow), ErrPlayerNotSeated)
	require.NoError(t, s.Surrender(p[2], testNow))
	assert.ErrorIs(t, s.Surrender(p[2], testNow), ErrPlayerNotSeated)
	assert.Equal(t, p[0], s.TurnHolder())
}

func TestSurrenderOfSecondToLastPaysRemainder(t *testing.T) {
	s, p := setupTestSession(t, 3)
	require.NoError(t, s.Surrender(p[1], testNow))
	require.NoError(t, s.Surrender(p[0], testNow))

	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, OutcomeLastStanding, s.Outcome)
	assert.Equal(t, p[2], s.Winner)
	require.Len(t, s.Settlement.Transfers, 1)
	assert.Equal(t, Transfer{Player: p[2], Amount: 150, Token: s.Settlement.Transfers[0].Token}, s.Settlement.Transfers[0])
	assertConserved(t, s)
}

func TestTimeoutSplitsPotAmongSeated(t *testing.T) {
	s, p := setupTestSession(t, 3)
	require.NoError(t, s.Surrender(p[1], testNow))
	require.NoError(t, s.Timeout(testNow))

	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, OutcomeTimeout, s.Outcome)
	assert.Equal(t, PlayerID(""), s.Winner)
	require.Len(t, s.Settlement.Transfers, 2)
	assert.Equal(t, p[0], s.Settlement.Transfers[0].Player)
	assert.Equal(t, int64(75), s.Settlement.Transfers[0].Amount)
	assert.Equal(t, p[2], s.Settlement.Transfers[1].Player)
	assert.Equal(t, int64(75), s.Settlement.Transfers[1].Amount)
}

func TestSplitPotRemainderFromFirstSeat(t *testing.T) {
	assert.Equal(t, []int64{34, 33, 33}, splitPot(100, 3))
	assert.Equal(t, []int64{26, 26, 25, 25}, splitPot(102, 4))
	assert.Equal(t, []int64{50, 50}, splitPot(100, 2))
	assert.Nil(t, splitPot(100, 0))
}

func TestSettlementTokensAreStable(t *testing.T) {
	s, p := setupTestSession(t, 3)
	require.NoError(t, s.Timeout(testNow))

	root := uuid.NewSHA1(settlementNamespace, []byte(s.ID.String()))
	assert.Equal(t, root, s.Settlement.Token)
	seen := map[uuid.UUID]bool{}
	for i, tr := range s.Settlement.Transfers {
		assert.Equal(t, p[i], tr.Player)
		assert.Equal(t, uuid.NewSHA1(root, []byte(tr.Player)), tr.Token)
		seen[tr.Token] = true
	}
	assert.Len(t, seen, 3)

	require.True(t, s.Settlement.MarkPaid(s.Settlement.Transfers[1].Token))
	assert.False(t, s.Settlement.MarkPaid(uuid.New()))
	assert.Len(t, s.Settlement.Pending(), 2)
	assert.Equal(t, int64(50), s.Settlement.Paid())
	assert.False(t, s.Settlement.Complete())
}

func TestExpired(t *testing.T) {
	s, p := setupTestSession(t, 2)
	assert.False(t, s.Expired(testNow.Add(59*time.Second)))
	assert.True(t, s.Expired(testNow.Add(time.Minute)))

	_, err := s.DrawCard(p[0], testNow.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, s.Expired(testNow.Add(time.Minute)))

	require.NoError(t, s.Timeout(testNow.Add(2*time.Minute)))
	assert.False(t, s.Expired(testNow.Add(time.Hour)), "finished sessions never expire")
}

// Plays many turns with whatever the snapshot offers and checks no card is lost or duplicated.
func TestRandomPlayConservesCards(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		players := []PlayerID{"a", "b", "c", "d"}
		s, err := NewSession(uuid.New(), players, 10, time.Minute, rand.New(rand.NewSource(seed)), testNow)
		require.NoError(t, err)
		require.NoError(t, s.Start(testNow))

		for step := 0; step < 2000 && s.Status == StatusActive; step++ {
			if step == 40 {
				require.NoError(t, s.Surrender("d", testNow))
				assertConserved(t, s)
				continue
			}
			holder := s.TurnHolder()
			snap := s.Snapshot(holder)
			if len(snap.Playable) == 0 {
				_, err := s.DrawCard(holder, testNow)
				require.NoError(t, err)
			} else {
				i := snap.Playable[0]
				var color Color
				if s.Hands[holder][i].IsWild() {
					color = Colors[step%len(Colors)]
				}
				require.NoError(t, s.PlayCard(holder, i, color, testNow))
			}
			assertConserved(t, s)
		}
	}
}
