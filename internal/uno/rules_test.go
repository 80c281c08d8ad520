package uno

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func card(color Color, rank Rank) Card {
	return newCard(color, rank)
}

func TestIsLegal(t *testing.T) {
	tests := []struct {
		name   string
		card   Card
		top    Card
		active Color
		legal  bool
	}{
		{"same color", card(Red, RankThree), card(Red, RankNine), "", true},
		{"same number", card(Blue, RankNine), card(Red, RankNine), "", true},
		{"same effect", card(Green, RankSkip), card(Yellow, RankSkip), "", true},
		{"draw two on draw two", card(Green, RankDrawTwo), card(Red, RankDrawTwo), "", true},
		{"no match", card(Blue, RankOne), card(Red, RankNine), "", false},
		{"effect vs number", card(Blue, RankReverse), card(Red, RankNine), "", false},
		{"wild on anything", card(Wild, RankWild), card(Red, RankNine), "", true},
		{"wild draw four on anything", card(Wild, RankWildDrawFour), card(Blue, RankSkip), "", true},
		{"wild on wild", card(Wild, RankWild), card(Wild, RankWildDrawFour), Green, true},
		{"active color on wild top", card(Green, RankFive), card(Wild, RankWild), Green, true},
		{"other color on wild top", card(Red, RankFive), card(Wild, RankWild), Green, false},
		{"rank does not match wild top", card(Red, RankWild), card(Wild, RankWild), Green, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.legal, IsLegal(tt.card, tt.top, tt.active))
		})
	}
}

func TestPlayableIndexesAgreesWithIsLegal(t *testing.T) {
	set := NewCardSet()
	tops := []struct {
		top    Card
		active Color
	}{
		{card(Red, RankSeven), ""},
		{card(Blue, RankSkip), ""},
		{card(Wild, RankWild), Yellow},
		{card(Wild, RankWildDrawFour), Red},
	}
	for _, tc := range tops {
		playable := PlayableIndexes(set, tc.top, tc.active)
		offered := map[int]bool{}
		for _, i := range playable {
			offered[i] = true
		}
		for i, c := range set {
			assert.Equal(t, IsLegal(c, tc.top, tc.active), offered[i], "%s on %s", c, tc.top)
		}
	}
}

func TestPlayableIndexesKeepsHandOrder(t *testing.T) {
	hand := []Card{card(Red, RankOne), card(Blue, RankTwo), card(Wild, RankWild), card(Red, RankNine)}
	assert.Equal(t, []int{0, 2, 3}, PlayableIndexes(hand, card(Red, RankFive), ""))
	assert.Empty(t, PlayableIndexes(nil, card(Red, RankFive), ""))
}
