// internal/uno/rules.go
package uno

// IsLegal decides whether card may be played on top. activeWildColor is the color nominated with
// the last wild play, or empty when none is in force.
//
// Wild cards are always legal. Against a wild top only the nominated color matches; rank matching
// is not allowed there. Otherwise a card matches by color or by rank (numbers by value, effects by
// effect type).
func IsLegal(card, top Card, activeWildColor Color) bool {
	if card.IsWild() {
		return true
	}
	if top.IsWild() {
		return card.Color == activeWildColor
	}
	return card.Color == top.Color || card.Rank == top.Rank
}

// PlayableIndexes returns the positions in hand that IsLegal accepts, in hand order. This is the
// list any presentation layer offers as selectable.
func PlayableIndexes(hand []Card, top Card, activeWildColor Color) []int {
	playable := make([]int, 0, len(hand))
	for i, c := range hand {
		if IsLegal(c, top, activeWildColor) {
			playable = append(playable, i)
		}
	}
	return playable
}
